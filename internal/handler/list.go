package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/apiresp"
	"github.com/slinet/gallerysync/internal/config"
	"github.com/slinet/gallerysync/internal/store"
)

// ListHandler serves GET /api/list.
type ListHandler struct {
	store    *store.Gateway
	logger   *zap.Logger
	maxLimit int
}

// NewListHandler constructs a ListHandler, reading the configured
// limit the way the teacher's NewListHandler reads APILimitsConfig.
func NewListHandler(st *store.Gateway, logger *zap.Logger) *ListHandler {
	maxLimit := 25
	if cfg := config.Get(); cfg != nil && cfg.API.Limits.ListMaxLimit > 0 {
		maxLimit = cfg.API.Limits.ListMaxLimit
	}
	return &ListHandler{store: st, logger: logger, maxLimit: maxLimit}
}

// GetList handles GET /api/list. Only cursor pagination is offered —
// the mirrored table has no stable offset semantics once a reconciler
// is concurrently writing new rows, unlike the teacher's static
// snapshot, so page/limit pagination is dropped rather than exposed
// with misleading results.
func (h *ListHandler) GetList(c *gin.Context) {
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

	galleries, err := h.store.ListGalleriesPage(c.Request.Context(), "", cursorPostedAt, cursorGid, limit)
	if err != nil {
		h.logger.Error("failed to list galleries", zap.Error(err))
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

func parseListCursor(raw string) (*time.Time, *int64, bool) {
	if raw == "" {
		return nil, nil, true
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil, nil, false
	}
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, nil, false
	}
	gid, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, nil, false
	}
	t := time.Unix(secs, 0).UTC()
	return &t, &gid, true
}

func nextListCursor(last store.Gallery) string {
	return fmt.Sprintf("%d,%d", last.PostedAt.Unix(), last.Gid)
}
