package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/apiresp"
	"github.com/slinet/gallerysync/internal/config"
	"github.com/slinet/gallerysync/internal/fetch"
	"github.com/slinet/gallerysync/internal/store"
)

// CategoryHandler serves GET /api/category/:category.
type CategoryHandler struct {
	store    *store.Gateway
	logger   *zap.Logger
	maxLimit int
}

// NewCategoryHandler constructs a CategoryHandler.
func NewCategoryHandler(st *store.Gateway, logger *zap.Logger) *CategoryHandler {
	maxLimit := 25
	if cfg := config.Get(); cfg != nil && cfg.API.Limits.CategoryMaxLimit > 0 {
		maxLimit = cfg.API.Limits.CategoryMaxLimit
	}
	return &CategoryHandler{store: st, logger: logger, maxLimit: maxLimit}
}

// GetByCategory handles GET /api/category/:category, cursor-paginated
// by (posted_at, gid) the same way ListHandler.GetList is. One of the
// 10 fixed site labels (fetch.ValidCategory) only — the teacher's
// comma-separated multi-category UNION ALL path is dropped, since
// every mirrored row already carries exactly one label and a caller
// wanting several can issue several requests.
func (h *CategoryHandler) GetByCategory(c *gin.Context) {
	category := c.Param("category")
	if !fetch.ValidCategory(category) {
		c.JSON(http.StatusBadRequest, apiresp.Of(nil, http.StatusBadRequest, "invalid category"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	if limit <= 0 {
		limit = 1
	}
	if limit > h.maxLimit {
		c.JSON(http.StatusBadRequest, apiresp.Of(nil, http.StatusBadRequest, "limit is too large"))
		return
	}

	cursorPostedAt, cursorGid, ok := parseListCursor(c.Query("cursor"))
	if !ok {
		c.JSON(http.StatusBadRequest, apiresp.Of(nil, http.StatusBadRequest, "invalid cursor format, expected 'unix_seconds,gid'"))
		return
	}

	galleries, err := h.store.ListGalleriesPage(c.Request.Context(), category, cursorPostedAt, cursorGid, limit)
	if err != nil {
		h.logger.Error("failed to list galleries by category", zap.String("category", category), zap.Error(err))
		c.JSON(http.StatusInternalServerError, apiresp.Of(nil, http.StatusInternalServerError, "internal error"))
		return
	}

	if len(galleries) == 0 {
		c.JSON(http.StatusOK, apiresp.Of([]store.Gallery{}, http.StatusOK, "ok"))
		return
	}

	next := nextListCursor(galleries[len(galleries)-1])
	c.JSON(http.StatusOK, apiresp.OfCursor(galleries, http.StatusOK, "ok", nil, &next))
}
