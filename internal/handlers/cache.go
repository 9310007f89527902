package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/kvcache/internal/services"
	appErrors "github.com/charlesng35/kvcache/pkg/errors"
	"github.com/charlesng35/kvcache/pkg/logger"
	"github.com/charlesng35/kvcache/pkg/response"
	appValidator "github.com/charlesng35/kvcache/pkg/validator"
)

// Messages mirrored in every cache response envelope.
const (
	MessageCacheCreated = "Cache Created"
	MessageCacheData    = "Cache Data"
	MessageCacheKeys    = "Cache Keys"
	MessageKeyRemoved   = "Cache Key Removed"
	MessageCacheRemoved = "Cache Removed"
	MessageCacheStats   = "Cache Stats"
)

// MaxListLimit caps the limit accepted by GET /api/cache.
const MaxListLimit = 1000

// CacheHandler exposes the cache service over HTTP.
type CacheHandler struct {
	svc *services.CacheService
	log *zap.Logger
}

// NewCacheHandler constructs a cache handler.
func NewCacheHandler(svc *services.CacheService) (*CacheHandler, error) {
	if svc == nil {
		return nil, errors.New("cache handler: service is required")
	}
	return &CacheHandler{svc: svc, log: logger.WithModule("http")}, nil
}

type setCacheRequest struct {
	Value *string `json:"value" validate:"required"`
}

type cacheDataResponse struct {
	response.Response
	Hit bool `json:"hit"`
}

type cacheDeleteResponse struct {
	response.Response
	Deleted bool `json:"deleted"`
}

// Set handles PUT|POST /api/cache/:key.
func (h *CacheHandler) Set(c *gin.Context) {
	var req setCacheRequest
	if !bindAndValidate(c, &req) {
		return
	}

	entry, err := h.svc.Set(requestContext(c), c.Param("key"), *req.Value)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, MessageCacheCreated, entry)
}

// Get handles GET /api/cache/:key. A miss generates and stores a value.
func (h *CacheHandler) Get(c *gin.Context) {
	entry, outcome, err := h.svc.Get(requestContext(c), c.Param("key"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, cacheDataResponse{
		Response: response.Message(MessageCacheData, entry),
		Hit:      outcome.Hit,
	})
}

// List handles GET /api/cache?limit=n.
func (h *CacheHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}
	if limit > MaxListLimit {
		response.Error(c, appErrors.NewBadRequest(fmt.Sprintf("limit must not exceed %d", MaxListLimit)))
		return
	}

	keys, err := h.svc.ListKeys(requestContext(c), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	perPage := limit
	if perPage == 0 {
		perPage = h.svc.Policy().MaxEntries
	}

	resp := response.Message(MessageCacheKeys, keys)
	resp.Meta = &response.Meta{PerPage: perPage, Total: len(keys)}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /api/cache/:key. Deleting an absent key is not an error.
func (h *CacheHandler) Delete(c *gin.Context) {
	entry, err := h.svc.DeleteKey(requestContext(c), c.Param("key"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	// entry is a typed pointer so a miss still serialises as "data": null.
	c.JSON(http.StatusOK, cacheDeleteResponse{
		Response: response.Message(MessageKeyRemoved, entry),
		Deleted:  entry != nil,
	})
}

// DeleteAll handles DELETE /api/cache.
func (h *CacheHandler) DeleteAll(c *gin.Context) {
	removed, err := h.svc.DeleteAll(requestContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, MessageCacheRemoved, gin.H{"deleted_count": removed})
}

// Stats handles GET /api/cache/stats.
func (h *CacheHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(requestContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, MessageCacheStats, stats)
}

func (h *CacheHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidKey):
		response.Error(c, appErrors.NewBadRequest(fmt.Sprintf("invalid key: keys must be 1-%d characters without control characters", appValidator.MaxKeyLength)))
	case errors.Is(err, services.ErrStoreUnavailable):
		h.log.Warn("cache store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, appErrors.ErrStoreUnavailable.WithInternal(err))
	default:
		h.log.Error("cache request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
	}
}
