package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harvesttable/growth-backend/internal/scheduler"
)

type SweepHandler struct {
	scheduler *scheduler.Scheduler
}

func NewSweepHandler(s *scheduler.Scheduler) *SweepHandler {
	return &SweepHandler{scheduler: s}
}

// POST /internal/sweep — entry point for an external cron/job runner; runs
// the same pass the in-process scheduler would.
func (h *SweepHandler) Run(c *gin.Context) {
	if err := h.scheduler.RunOnce(c.Request.Context()); err != nil {
		RespondError(c, http.StatusInternalServerError, "sweep_failed", err)
		return
	}
	RespondOK(c, gin.H{"status": "done"})
}
