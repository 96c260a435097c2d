package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harvesttable/growth-backend/internal/services"
)

type AssignmentHandler struct {
	assignments services.AssignmentService
}

func NewAssignmentHandler(assignments services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// GET /api/experiments/:id/assignment?subject_id=...
func (h *AssignmentHandler) Resolve(c *gin.Context) {
	id, ok := parseExperimentID(c)
	if !ok {
		return
	}
	subjectID := c.Query("subject_id")
	if subjectID == "" {
		RespondError(c, http.StatusBadRequest, "missing_subject_id", nil)
		return
	}
	assignment, err := h.assignments.Resolve(c.Request.Context(), id, subjectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"assignment": assignment})
}
