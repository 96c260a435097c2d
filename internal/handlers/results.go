package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/harvesttable/growth-backend/internal/services"
)

type ResultsHandler struct {
	results services.ResultsService
}

func NewResultsHandler(results services.ResultsService) *ResultsHandler {
	return &ResultsHandler{results: results}
}

// GET /api/experiments/:id/results
func (h *ResultsHandler) Get(c *gin.Context) {
	id, ok := parseExperimentID(c)
	if !ok {
		return
	}
	summary, err := h.results.Summarize(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"results": summary})
}
