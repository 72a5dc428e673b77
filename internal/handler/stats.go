// Package handler's stats.go is supplemented surface not present in
// the teacher's read API, grounded on original_source/api/routers/
// admin.py's thumb_queue_stats endpoint.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/apiresp"
	"github.com/slinet/gallerysync/internal/store"
)

// StatsHandler serves GET /api/stats/thumb-queue.
type StatsHandler struct {
	store  *store.Gateway
	logger *zap.Logger
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(st *store.Gateway, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{store: st, logger: logger}
}

// GetThumbQueueStats handles GET /api/stats/thumb-queue.
func (h *StatsHandler) GetThumbQueueStats(c *gin.Context) {
	stats, err := h.store.ThumbQueueStats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load thumb queue stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, apiresp.Of(nil, http.StatusInternalServerError, "internal error"))
		return
	}
	c.JSON(http.StatusOK, apiresp.Of(stats, http.StatusOK, "ok"))
}
