package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/harvesttable/growth-backend/internal/logger"
	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/types"
)

type OutcomeHandler struct {
	log    *logger.Logger
	events repos.OutcomeEventRepo
}

func NewOutcomeHandler(log *logger.Logger, events repos.OutcomeEventRepo) *OutcomeHandler {
	return &OutcomeHandler{
		log:    log.With("handler", "OutcomeHandler"),
		events: events,
	}
}

type outcomeInput struct {
	SubjectID  string         `json:"subject_id"`
	Metric     string         `json:"metric"`
	Value      float64        `json:"value"`
	OccurredAt *time.Time     `json:"occurred_at"`
	Source     string         `json:"source"`
	Data       datatypes.JSON `json:"data"`
}

// POST /api/outcomes — ingest endpoint for product surfaces (bookings,
// ratings, completions). Accepts a single event or a batch.
func (h *OutcomeHandler) Ingest(c *gin.Context) {
	var body struct {
		Events []outcomeInput `json:"events"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(body.Events) == 0 {
		RespondError(c, http.StatusBadRequest, "empty_batch", nil)
		return
	}

	events := make([]*types.OutcomeEvent, 0, len(body.Events))
	for _, in := range body.Events {
		if in.SubjectID == "" || in.Metric == "" {
			RespondError(c, http.StatusBadRequest, "missing_subject_or_metric", nil)
			return
		}
		occurredAt := time.Now()
		if in.OccurredAt != nil {
			occurredAt = *in.OccurredAt
		}
		events = append(events, &types.OutcomeEvent{
			SubjectID:  in.SubjectID,
			Metric:     in.Metric,
			Value:      in.Value,
			OccurredAt: occurredAt,
			Source:     in.Source,
			Data:       in.Data,
		})
	}

	created, err := h.events.Create(c.Request.Context(), nil, events)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "ingest_failed", err)
		return
	}
	h.log.Debug("Outcome events ingested", "count", len(created))
	c.JSON(http.StatusCreated, gin.H{"ingested": len(created)})
}
