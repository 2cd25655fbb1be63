package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/database/patterns"
)

// PatternsController serves stored patterns.
type PatternsController struct {
	store    PatternStore
	attacher ImageAttacher
	media    MediaRemover
	logger   *zap.Logger
}

func NewPatternsController(store PatternStore, attacher ImageAttacher, media MediaRemover, logger *zap.Logger) *PatternsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatternsController{store: store, attacher: attacher, media: media, logger: logger}
}

// List handles GET /api/patterns
func (pc *PatternsController) List(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 200)
	ctx := c.Request.Context()

	items, err := pc.store.List(ctx, limit, offset)
	if err != nil {
		respondInternalError(c, pc.logger, err, "list patterns")
		return
	}
	total, err := pc.store.Count(ctx)
	if err != nil {
		respondInternalError(c, pc.logger, err, "count patterns")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(items)) < total,
	})
}

// Get handles GET /api/patterns/:id
func (pc *PatternsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := pc.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, patterns.ErrNotFound) {
		respondNotFound(c, "pattern")
		return
	}
	if err != nil {
		respondInternalError(c, pc.logger, err, "get pattern")
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/patterns/:id
func (pc *PatternsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	err := pc.store.Delete(c.Request.Context(), id)
	if errors.Is(err, patterns.ErrNotFound) {
		respondNotFound(c, "pattern")
		return
	}
	if err != nil {
		respondInternalError(c, pc.logger, err, "delete pattern")
		return
	}
	if pc.media != nil {
		if err := pc.media.RemovePattern(id); err != nil {
			pc.logger.Warn("failed to remove pattern images", zap.Uint("pattern_id", id), zap.Error(err))
		}
	}
	c.Status(http.StatusNoContent)
}

// AttachImagesRequest is the body of POST /api/patterns/:id/images.
type AttachImagesRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

// AttachImages handles POST /api/patterns/:id/images
func (pc *PatternsController) AttachImages(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AttachImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "urls are required")
		return
	}
	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		respondBadRequest(c, "urls are required")
		return
	}

	result, err := pc.attacher.AttachImages(c.Request.Context(), id, urls)
	if err != nil {
		respondInternalError(c, pc.logger, err, "attach images")
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}
