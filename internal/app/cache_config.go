package app

import (
	"strings"
	"time"

	"github.com/charlesng35/kvcache/internal/cache"
	"github.com/charlesng35/kvcache/internal/services"
)

const (
	defaultMaxEntries    = 2
	defaultMaxAgeSeconds = 3600
	defaultValueLength   = 10
	defaultSweepSchedule = "@every 1m"
)

// Store backends selectable through cache.store.
const (
	StoreDatabase = "database"
	StoreMemory   = "memory"
)

// MaxAgeDuration returns the configured record lifetime.
func (c CacheConfig) MaxAgeDuration() time.Duration {
	return time.Duration(c.MaxAge) * time.Second
}

// StoreKind returns the normalised store backend name, defaulting to the database.
func (c CacheConfig) StoreKind() string {
	if strings.EqualFold(strings.TrimSpace(c.Store), StoreMemory) {
		return StoreMemory
	}
	return StoreDatabase
}

// PolicyConfig builds the eviction policy for the configured bounds.
func (c CacheConfig) PolicyConfig(clock cache.Clock) (cache.Policy, error) {
	return cache.NewPolicy(c.MaxEntries, c.MaxAgeDuration(), clock)
}

// ServiceConfig builds the cache service parameters. The publisher may be nil.
func (c CacheConfig) ServiceConfig(clock cache.Clock, publisher cache.Publisher) (services.CacheServiceConfig, error) {
	policy, err := c.PolicyConfig(clock)
	if err != nil {
		return services.CacheServiceConfig{}, err
	}
	return services.CacheServiceConfig{
		Policy:           policy,
		ValueLength:      c.ValueLength,
		OperationTimeout: c.OperationTimeout,
		Publisher:        publisher,
	}, nil
}
