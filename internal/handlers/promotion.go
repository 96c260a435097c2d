package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harvesttable/growth-backend/internal/services"
)

type PromotionHandler struct {
	promotions services.PromotionService
}

func NewPromotionHandler(promotions services.PromotionService) *PromotionHandler {
	return &PromotionHandler{promotions: promotions}
}

// POST /api/experiments/:id/winner
func (h *PromotionHandler) DeclareWinner(c *gin.Context) {
	id, ok := parseExperimentID(c)
	if !ok {
		return
	}
	var body struct {
		Variant string `json:"variant"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	exp, err := h.promotions.DeclareWinner(c.Request.Context(), id, body.Variant)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"experiment": exp})
}

// POST /api/experiments/:id/promote
func (h *PromotionHandler) Promote(c *gin.Context) {
	id, ok := parseExperimentID(c)
	if !ok {
		return
	}
	var body struct {
		Variant      string `json:"variant"`
		MarkPromoted bool   `json:"mark_promoted"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	cfg, err := h.promotions.Promote(c.Request.Context(), id, body.Variant, body.MarkPromoted)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"live_config": cfg})
}
