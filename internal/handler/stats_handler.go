package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/service"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// StatsHandler exposes platform-wide aggregate endpoints.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Overview godoc
// @Summary Platform-wide enrollment statistics
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /stats/overview [get]
func (h *StatsHandler) Overview(c *gin.Context) {
	stats, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
