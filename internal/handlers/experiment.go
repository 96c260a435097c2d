package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harvesttable/growth-backend/internal/repos"
	"github.com/harvesttable/growth-backend/internal/services"
)

type ExperimentHandler struct {
	experiments services.ExperimentService
}

func NewExperimentHandler(experiments services.ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{experiments: experiments}
}

// POST /api/experiments
func (h *ExperimentHandler) Create(c *gin.Context) {
	var input services.CreateExperimentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	exp, err := h.experiments.Create(c.Request.Context(), input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"experiment": exp})
}

// GET /api/experiments
func (h *ExperimentHandler) List(c *gin.Context) {
	filter := repos.ExperimentFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
	}
	out, err := h.experiments.List(c.Request.Context(), filter)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiments": out})
}

// GET /api/experiments/:id
func (h *ExperimentHandler) Get(c *gin.Context) {
	id, ok := parseExperimentID(c)
	if !ok {
		return
	}
	exp, err := h.experiments.Get(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiment": exp})
}

// POST /api/experiments/:id/start
func (h *ExperimentHandler) Start(c *gin.Context) {
	id, ok := parseExperimentID(c)
	if !ok {
		return
	}
	exp, err := h.experiments.Start(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiment": exp})
}

// POST /api/experiments/:id/stop
func (h *ExperimentHandler) Stop(c *gin.Context) {
	id, ok := parseExperimentID(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)
	exp, err := h.experiments.Stop(c.Request.Context(), id, body.Reason)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiment": exp})
}

// POST /api/experiments/:id/complete
func (h *ExperimentHandler) Complete(c *gin.Context) {
	id, ok := parseExperimentID(c)
	if !ok {
		return
	}
	exp, err := h.experiments.Complete(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiment": exp})
}

func parseExperimentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_experiment_id", err)
		return uuid.Nil, false
	}
	return id, true
}
