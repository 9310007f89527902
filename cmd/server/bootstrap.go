package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/kvcache/internal/api"
	"github.com/charlesng35/kvcache/internal/app"
	"github.com/charlesng35/kvcache/internal/app/maintenance"
	iauth "github.com/charlesng35/kvcache/internal/auth"
	"github.com/charlesng35/kvcache/internal/cache"
	"github.com/charlesng35/kvcache/internal/database"
	"github.com/charlesng35/kvcache/internal/middleware"
	"github.com/charlesng35/kvcache/internal/monitoring"
	"github.com/charlesng35/kvcache/internal/monitoring/checks"
	"github.com/charlesng35/kvcache/internal/realtime"
	"github.com/charlesng35/kvcache/internal/services"
	"github.com/charlesng35/kvcache/pkg/logger"
)

const (
	storeProbeTimeout = 2 * time.Second
	shutdownJobWait   = 10 * time.Second
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Store      cache.Store
	Monitoring *monitoring.Module
	Hub        *realtime.Hub
	Cache      *services.CacheService
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine
}

// bootstrapRuntime opens the store and wires services, background jobs and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	switch cfg.Cache.StoreKind() {
	case app.StoreMemory:
		stack.Store = cache.NewMemoryStore(cache.Now)
		log.Info("using in-process cache store")
	default:
		stack.DB, err = initialiseDatabase(cfg)
		if err != nil {
			return nil, err
		}
		stack.Store = cache.NewDatabaseStore(stack.DB)
	}

	stack.Hub = realtime.NewHub()

	svcCfg, err := cfg.Cache.ServiceConfig(cache.Now, stack.Hub)
	if err != nil {
		return nil, fmt.Errorf("cache configuration: %w", err)
	}
	stack.Cache, err = services.NewCacheService(stack.Store, svcCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise cache service: %w", err)
	}

	health := stack.Monitoring.Health()
	health.RegisterReadiness(checks.Store(stack.Store, storeProbeTimeout))
	health.RegisterReadiness(checks.Maintenance(0))
	if cfg.Realtime.Enabled {
		health.RegisterReadiness(checks.Realtime(stack.Hub))
	}

	var jwtSvc *iauth.JWTService
	if cfg.Auth.JWT.Enabled {
		jwtSvc, err = iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise jwt service: %w", err)
		}
	}

	stack.Cleaner = maintenance.NewCleaner(stack.Store,
		maintenance.WithPublisher(stack.Hub),
		maintenance.WithExpirySchedule(cfg.Cache.SweepSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Deps{
		Config:     cfg,
		Cache:      stack.Cache,
		JWT:        jwtSvc,
		Hub:        stack.Hub,
		Monitoring: stack.Monitoring,
		RateStore:  middleware.NewMemoryRateStore(time.Now),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, runs a final sweep and releases resources.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	var errs error
	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-time.After(shutdownJobWait):
			errs = multierr.Append(errs, fmt.Errorf("maintenance jobs still running after %s", shutdownJobWait))
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownJobWait)
		if _, err := s.Cleaner.SweepExpired(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("final sweep: %w", err))
		}
		cancel()
		s.Cleaner = nil
	}

	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
		s.DB = nil
	}

	for _, err := range multierr.Errors(errs) {
		log.Warn("shutdown", zap.Error(err))
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Prepare(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("prepare database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
