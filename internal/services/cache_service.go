package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/kvcache/internal/cache"
	"github.com/charlesng35/kvcache/internal/models"
	"github.com/charlesng35/kvcache/internal/monitoring"
	"github.com/charlesng35/kvcache/pkg/crypto"
	"github.com/charlesng35/kvcache/pkg/logger"
	"github.com/charlesng35/kvcache/pkg/validator"
)

const defaultValueLength = 10

// ValueGenerator produces the value stored for a key first seen on a read.
type ValueGenerator func(length int) (string, error)

// CacheServiceConfig carries the bounds and collaborators of a CacheService.
type CacheServiceConfig struct {
	Policy           cache.Policy
	ValueLength      int
	OperationTimeout time.Duration
	Generator        ValueGenerator
	Publisher        cache.Publisher
}

// GetOutcome tells a caller whether Get found a live record.
type GetOutcome struct {
	Hit bool
}

// CacheStats describes the current occupancy and bounds.
type CacheStats struct {
	Entries       int64 `json:"entries"`
	MaxEntries    int   `json:"max_entries"`
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}

// CacheService runs every read and write through the eviction policy. It
// keeps no state between calls: each write re-reads the live snapshot.
type CacheService struct {
	store       cache.Store
	policy      cache.Policy
	valueLength int
	timeout     time.Duration
	generate    ValueGenerator
	publisher   cache.Publisher
	log         *zap.Logger
}

// NewCacheService validates the configuration and builds the service.
func NewCacheService(store cache.Store, cfg CacheServiceConfig) (*CacheService, error) {
	if store == nil {
		return nil, errors.New("cache service: store is required")
	}
	policy, err := cache.NewPolicy(cfg.Policy.MaxEntries, cfg.Policy.MaxAge, cfg.Policy.Clock)
	if err != nil {
		return nil, fmt.Errorf("cache service: %w", err)
	}

	svc := &CacheService{
		store:       store,
		policy:      policy,
		valueLength: cfg.ValueLength,
		timeout:     cfg.OperationTimeout,
		generate:    cfg.Generator,
		publisher:   cfg.Publisher,
		log:         logger.WithModule("cache"),
	}
	if svc.valueLength <= 0 {
		svc.valueLength = defaultValueLength
	}
	if svc.generate == nil {
		svc.generate = crypto.GenerateText
	}
	if svc.publisher == nil {
		svc.publisher = cache.NopPublisher{}
	}
	return svc, nil
}

// Policy exposes the bounds the service was built with.
func (s *CacheService) Policy() cache.Policy {
	return s.policy
}

// Set writes value under key, evicting the least valuable record when the
// cache is full.
func (s *CacheService) Set(ctx context.Context, key, value string) (entry *models.CacheEntry, err error) {
	if s == nil {
		return nil, errors.New("cache service: service not initialised")
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	defer s.observe("set", time.Now(), &err)

	entry, err = s.write(ctx, key, &value, nil)
	return entry, err
}

// Get returns the live record for key and refreshes its expiry and counter.
// A miss stores a freshly generated value under key and returns it.
func (s *CacheService) Get(ctx context.Context, key string) (entry *models.CacheEntry, outcome GetOutcome, err error) {
	if s == nil {
		return nil, GetOutcome{}, errors.New("cache service: service not initialised")
	}
	if err := checkKey(key); err != nil {
		return nil, GetOutcome{}, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	defer s.observe("get", time.Now(), &err)

	found, err := s.store.FindOne(ctx, key)
	if err != nil {
		return nil, GetOutcome{}, s.storeFailure("find_one", err)
	}

	if found == nil {
		monitoring.RecordCacheLookup(false)
		s.log.Debug("cache miss", zap.String("key", key))

		value, genErr := s.generate(s.valueLength)
		if genErr != nil {
			return nil, GetOutcome{}, fmt.Errorf("cache service: generate value: %w", genErr)
		}
		entry, err = s.write(ctx, key, &value, nil)
		return entry, GetOutcome{Hit: false}, err
	}

	monitoring.RecordCacheLookup(true)
	s.log.Debug("cache hit", zap.String("key", key))

	entry, err = s.write(ctx, key, nil, &found.Value)
	return entry, GetOutcome{Hit: true}, err
}

// ListKeys returns live keys, most recently updated first. A non-positive
// limit falls back to the entry bound.
func (s *CacheService) ListKeys(ctx context.Context, limit int) (keys []string, err error) {
	if s == nil {
		return nil, errors.New("cache service: service not initialised")
	}
	if limit <= 0 {
		limit = s.policy.MaxEntries
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	defer s.observe("list", time.Now(), &err)

	keys, err = s.store.RecentKeys(ctx, limit)
	if err != nil {
		return nil, s.storeFailure("recent_keys", err)
	}
	return keys, nil
}

// DeleteKey removes key. Absence is not an error: it returns nil, nil.
func (s *CacheService) DeleteKey(ctx context.Context, key string) (entry *models.CacheEntry, err error) {
	if s == nil {
		return nil, errors.New("cache service: service not initialised")
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	defer s.observe("delete", time.Now(), &err)

	entry, err = s.store.DeleteOne(ctx, key)
	if err != nil {
		return nil, s.storeFailure("delete_one", err)
	}
	if entry != nil {
		monitoring.RecordCacheDelete("delete_one", 1)
		s.publish(cache.Event{Type: cache.EventDeleted, Key: entry.Key, Count: entry.Count})
	}
	return entry, nil
}

// DeleteAll removes every record and returns how many live ones were removed.
func (s *CacheService) DeleteAll(ctx context.Context) (removed int64, err error) {
	if s == nil {
		return 0, errors.New("cache service: service not initialised")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	defer s.observe("flush", time.Now(), &err)

	removed, err = s.store.DeleteAll(ctx)
	if err != nil {
		return 0, s.storeFailure("delete_all", err)
	}
	monitoring.RecordCacheDelete("delete_all", removed)
	monitoring.SetCacheEntries(0)
	s.publish(cache.Event{Type: cache.EventFlushed, Removed: removed})
	s.log.Info("cache flushed", zap.Int64("removed", removed))
	return removed, nil
}

// Stats reports the live record count alongside the configured bounds.
func (s *CacheService) Stats(ctx context.Context) (stats CacheStats, err error) {
	if s == nil {
		return CacheStats{}, errors.New("cache service: service not initialised")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	count, err := s.store.Count(ctx)
	if err != nil {
		return CacheStats{}, s.storeFailure("count", err)
	}
	return CacheStats{
		Entries:       count,
		MaxEntries:    s.policy.MaxEntries,
		MaxAgeSeconds: int64(s.policy.MaxAge / time.Second),
	}, nil
}

// write runs snapshot, decision and a single upsert. value is nil for a
// touch; fallback then supplies the value if the key has to be re-admitted
// because it vanished after the caller looked it up.
func (s *CacheService) write(ctx context.Context, key string, value, fallback *string) (*models.CacheEntry, error) {
	snapshot, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, s.storeFailure("find_all", err)
	}

	decision := s.policy.Decide(key, snapshot)
	if value == nil && decision.Kind != cache.KindUpdate {
		value = fallback
	}

	entry, err := s.store.Upsert(ctx, decision.Target, decision.Patch(key, value))
	if err != nil {
		return nil, s.storeFailure("upsert", err)
	}

	occupied := len(snapshot)
	if decision.Kind == cache.KindInsert {
		occupied++
	}
	monitoring.SetCacheEntries(occupied)
	monitoring.RecordCacheWrite(decision.Kind.String())
	evt := cache.Event{Key: entry.Key, Count: entry.Count}
	expires := entry.Expires
	evt.Expires = &expires

	switch decision.Kind {
	case cache.KindEvict:
		evt.Type = cache.EventEvicted
		evt.Victim = decision.Victim.Key
		s.log.Info("cache entry evicted",
			zap.String("victim", decision.Victim.Key),
			zap.String("key", key),
			zap.Int("victim_count", decision.Victim.Count),
		)
	case cache.KindUpdate:
		evt.Type = cache.EventUpdated
	default:
		evt.Type = cache.EventCreated
	}
	s.publish(evt)
	return entry, nil
}

func (s *CacheService) publish(evt cache.Event) {
	if evt.At.IsZero() {
		evt.At = s.policy.Clock.Now()
	}
	s.publisher.Publish(evt)
}

func (s *CacheService) storeFailure(op string, err error) error {
	reason := storeFailureReason(err)
	monitoring.RecordStoreError(op, reason, err.Error())
	s.log.Warn("cache store call failed",
		zap.String("operation", op),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func (s *CacheService) observe(op string, start time.Time, errp *error) {
	result := "success"
	if errp != nil && *errp != nil {
		result = "error"
	}
	monitoring.ObserveCacheOperation(op, result, time.Since(start))
}

// bound applies the operation timeout unless the caller set a deadline.
func (s *CacheService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func checkKey(key string) error {
	if !validator.IsCacheKey(key) {
		return ErrInvalidKey
	}
	return nil
}
