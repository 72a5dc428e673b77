// Package handler implements the supplemented read-only HTTP API
// (SPEC_FULL.md §6): gallery detail, cursor-paginated list, category
// listing, thumb-queue stats, and thumbnail file serving. Grounded on
// the teacher's internal/handler/gallery.go, list.go, category.go —
// same constructor/config-limit idiom, same composite cursor scheme —
// adapted to the new Gallery schema (namespaced tags map, no torrents/
// root_gid/expunged/bytorrent fields).
package handler

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/apiresp"
	"github.com/slinet/gallerysync/internal/store"
)

var gidTokenPattern = regexp.MustCompile(`^[0-9a-f]{10}$`)

// GalleryHandler serves GET /api/gallery/:gid/:token.
type GalleryHandler struct {
	store  *store.Gateway
	logger *zap.Logger
}

// NewGalleryHandler constructs a GalleryHandler.
func NewGalleryHandler(st *store.Gateway, logger *zap.Logger) *GalleryHandler {
	return &GalleryHandler{store: st, logger: logger}
}

// GetGallery handles GET /api/gallery/:gid/:token.
func (h *GalleryHandler) GetGallery(c *gin.Context) {
	gid, ok := parseGid(c.Param("gid"))
	if !ok {
		c.JSON(http.StatusBadRequest, apiresp.Of(nil, http.StatusBadRequest, "invalid gid"))
		return
	}
	token := c.Param("token")
	if !gidTokenPattern.MatchString(token) {
		c.JSON(http.StatusBadRequest, apiresp.Of(nil, http.StatusBadRequest, "invalid token"))
		return
	}

	gal, err := h.store.GetGalleryByGidToken(c.Request.Context(), gid, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, apiresp.Of(nil, http.StatusNotFound, "gallery not found"))
			return
		}
		h.logger.Error("get gallery failed", zap.Int64("gid", gid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, apiresp.Of(nil, http.StatusInternalServerError, "internal error"))
		return
	}

	c.JSON(http.StatusOK, apiresp.Of(gal, http.StatusOK, "ok"))
}
