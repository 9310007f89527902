package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kvcache/internal/app"
	iauth "github.com/charlesng35/kvcache/internal/auth"
	"github.com/charlesng35/kvcache/internal/handlers"
	"github.com/charlesng35/kvcache/internal/middleware"
	"github.com/charlesng35/kvcache/internal/monitoring"
)

func registerMonitoringRoutes(api *gin.RouterGroup, handler *handlers.MonitoringHandler) {
	if handler == nil {
		return
	}
	api.GET("/monitoring/summary", middleware.RequireScope(iauth.ScopeRead), handler.Summary)
}

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if !cfg.Monitoring.Prometheus.Enabled || mon == nil {
		return
	}
	r.GET(metricsEndpoint(cfg), gin.WrapH(mon.Handler()))
}
