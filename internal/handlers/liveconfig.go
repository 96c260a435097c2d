package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harvesttable/growth-backend/internal/repos"
)

type LiveConfigHandler struct {
	liveConfigs repos.LiveConfigRepo
}

func NewLiveConfigHandler(liveConfigs repos.LiveConfigRepo) *LiveConfigHandler {
	return &LiveConfigHandler{liveConfigs: liveConfigs}
}

// GET /api/live-config/:surface — what product surfaces read when the
// redis snapshot is unavailable.
func (h *LiveConfigHandler) Get(c *gin.Context) {
	surface := c.Param("surface")
	cfg, err := h.liveConfigs.GetBySurface(c.Request.Context(), nil, surface)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "live_config_lookup_failed", err)
		return
	}
	if cfg == nil {
		RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	RespondOK(c, gin.H{"live_config": cfg})
}
