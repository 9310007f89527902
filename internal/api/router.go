package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kvcache/internal/app"
	iauth "github.com/charlesng35/kvcache/internal/auth"
	"github.com/charlesng35/kvcache/internal/handlers"
	"github.com/charlesng35/kvcache/internal/middleware"
	"github.com/charlesng35/kvcache/internal/monitoring"
	"github.com/charlesng35/kvcache/internal/realtime"
	"github.com/charlesng35/kvcache/internal/services"
)

// Deps groups the collaborators the router wires into routes. JWT, Hub,
// Monitoring and RateStore are optional.
type Deps struct {
	Config     *app.Config
	Cache      *services.CacheService
	JWT        *iauth.JWTService
	Hub        *realtime.Hub
	Monitoring *monitoring.Module
	RateStore  middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.Cache == nil {
		return nil, errors.New("cache service must be provided")
	}
	cfg := deps.Config

	r := gin.New()
	r.HandleMethodNotAllowed = true
	if len(cfg.Server.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
			return nil, err
		}
	} else if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))
	}

	r.GET("/", handlers.Index)

	registerHealthRoutes(r, cfg, deps.Monitoring)
	registerMetricsRoute(r, cfg, deps.Monitoring)

	// Auth stays disabled unless configured, even when a service is passed in.
	var jwt *iauth.JWTService
	if cfg.Auth.JWT.Enabled {
		if deps.JWT == nil {
			return nil, errors.New("jwt service must be provided when auth is enabled")
		}
		jwt = deps.JWT
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	cacheHandler, err := handlers.NewCacheHandler(deps.Cache)
	if err != nil {
		return nil, err
	}
	registerCacheRoutes(api, cacheHandler)
	var scrapePath string
	if cfg.Monitoring.Prometheus.Enabled {
		scrapePath = metricsEndpoint(cfg)
	}
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, deps.Cache, scrapePath))

	if cfg.Realtime.Enabled && deps.Hub != nil {
		registerRealtimeRoutes(r, handlers.NewRealtimeHandler(deps.Hub, jwt))
	}

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}

func metricsEndpoint(cfg *app.Config) string {
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		return "/metrics"
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}
