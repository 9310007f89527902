package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kvcache/internal/app"
	"github.com/charlesng35/kvcache/internal/handlers"
	"github.com/charlesng35/kvcache/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	var manager *monitoring.HealthManager
	if cfg.Monitoring.Health.Enabled && mon != nil {
		manager = mon.Health()
	}

	handler := handlers.NewHealthHandler(manager)
	for _, router := range []gin.IRouter{r, r.Group("/api")} {
		router.GET("/health", handler.Overall)
		router.GET("/health/live", handler.Live)
		router.GET("/health/ready", handler.Ready)
	}
}
