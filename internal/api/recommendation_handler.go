package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/models"
)

// RecommendationHandler serves AI subscription suggestions.
type RecommendationHandler struct {
	recommendations core.RecommendationService
	logger          *zap.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(rs core.RecommendationService, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{recommendations: rs, logger: logger}
}

// Recommend handles POST /api/v1/recommendations.
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req models.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	resp, err := h.recommendations.Recommend(c.Request.Context(), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
