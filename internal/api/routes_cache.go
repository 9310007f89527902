package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/kvcache/internal/auth"
	"github.com/charlesng35/kvcache/internal/handlers"
	"github.com/charlesng35/kvcache/internal/middleware"
)

func registerCacheRoutes(api *gin.RouterGroup, handler *handlers.CacheHandler) {
	read := middleware.RequireScope(iauth.ScopeRead)
	write := middleware.RequireScope(iauth.ScopeWrite)

	group := api.Group("/cache")
	{
		group.GET("", read, handler.List)
		group.GET("/stats", read, handler.Stats)
		// A miss on GET writes a generated value.
		group.GET("/:key", read, write, handler.Get)
		group.PUT("/:key", write, handler.Set)
		group.POST("/:key", write, handler.Set)
		group.DELETE("/:key", write, handler.Delete)
		group.DELETE("", write, handler.DeleteAll)
	}
}
