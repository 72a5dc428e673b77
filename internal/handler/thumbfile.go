package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/apiresp"
)

// ThumbFileHandler serves GET /api/thumb/:gid from THUMB_DIR, per
// spec.md §6's recommended week-long cache lifetime.
type ThumbFileHandler struct {
	thumbDir string
	logger   *zap.Logger
}

// NewThumbFileHandler constructs a ThumbFileHandler.
func NewThumbFileHandler(thumbDir string, logger *zap.Logger) *ThumbFileHandler {
	return &ThumbFileHandler{thumbDir: thumbDir, logger: logger}
}

// GetThumb handles GET /api/thumb/:gid.
func (h *ThumbFileHandler) GetThumb(c *gin.Context) {
	gid, ok := parseGid(c.Param("gid"))
	if !ok {
		c.JSON(http.StatusBadRequest, apiresp.Of(nil, http.StatusBadRequest, "invalid gid"))
		return
	}

	path := filepath.Join(h.thumbDir, strconv.FormatInt(gid, 10))
	c.Header("Cache-Control", "public, max-age=604800")
	c.File(path)
}
