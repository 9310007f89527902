package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/kvcache/internal/cache"
	"github.com/charlesng35/kvcache/internal/monitoring"
	"github.com/charlesng35/kvcache/pkg/logger"
)

// Job names reported to monitoring.
const (
	JobCacheExpiry = "cache_expiry"
	JobCacheGauge  = "cache_gauge"
)

const (
	defaultExpirySpec = "@every 1m"
	defaultGaugeSpec  = "@every 30s"
)

// Sweeper is the part of cache.Store the cleaner drives.
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// Cleaner emulates the native expiry of document stores: it periodically
// purges records whose expires has passed and refreshes the entries gauge.
type Cleaner struct {
	store     Sweeper
	publisher cache.Publisher
	cron      *cron.Cron
	clock     cache.Clock
	log       *zap.Logger
	timeout   time.Duration

	expirySchedule string
	gaugeSchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithClock overrides the clock used for expiry comparisons.
func WithClock(clock cache.Clock) Option {
	return func(cleaner *Cleaner) {
		if clock != nil {
			cleaner.clock = clock
		}
	}
}

// WithPublisher sends an expired event after every sweep that removed records.
func WithPublisher(p cache.Publisher) Option {
	return func(cleaner *Cleaner) {
		if p != nil {
			cleaner.publisher = p
		}
	}
}

// WithExpirySchedule overrides the cron specification for the expiry sweep.
func WithExpirySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.expirySchedule = spec
		}
	}
}

// WithGaugeSchedule overrides the cron specification for the entries gauge refresh.
func WithGaugeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.gaugeSchedule = spec
		}
	}
}

// WithJobTimeout bounds every scheduled run.
func WithJobTimeout(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.timeout = d
		}
	}
}

// NewCleaner constructs a Cleaner. A nil store disables every job.
func NewCleaner(store Sweeper, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		store:          store,
		publisher:      cache.NopPublisher{},
		timeout:        30 * time.Second,
		expirySchedule: defaultExpirySpec,
		gaugeSchedule:  defaultGaugeSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.store == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.expirySchedule, c.scheduled(JobCacheExpiry, c.sweepExpired)); err != nil {
		return fmt.Errorf("maintenance: schedule %s: %w", JobCacheExpiry, err)
	}
	if _, err := c.cron.AddFunc(c.gaugeSchedule, c.scheduled(JobCacheGauge, c.refreshGauge)); err != nil {
		return fmt.Errorf("maintenance: schedule %s: %w", JobCacheGauge, err)
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every job sequentially. Used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	errs = multierr.Append(errs, c.run(ctx, JobCacheExpiry, c.sweepExpired))
	errs = multierr.Append(errs, c.run(ctx, JobCacheGauge, c.refreshGauge))
	return errs
}

// SweepExpired removes expired records once and returns how many were purged.
func (c *Cleaner) SweepExpired(ctx context.Context) (int64, error) {
	if c.store == nil {
		return 0, errors.New("maintenance: store is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return c.deleteExpired(ctx)
}

func (c *Cleaner) scheduled(job string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.run(ctx, job, fn); err != nil {
			c.log.Warn("maintenance job failed", zap.String("job", job), zap.Error(err))
		}
	}
}

func (c *Cleaner) run(ctx context.Context, job string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		monitoring.RecordMaintenanceRun(job, "failure", err.Error(), time.Since(start))
		return fmt.Errorf("maintenance: %s: %w", job, err)
	}
	monitoring.RecordMaintenanceRun(job, "success", "", time.Since(start))
	return nil
}

func (c *Cleaner) sweepExpired(ctx context.Context) error {
	_, err := c.deleteExpired(ctx)
	return err
}

func (c *Cleaner) deleteExpired(ctx context.Context) (int64, error) {
	now := c.clock.Now()
	removed, err := c.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		monitoring.RecordCacheExpired(removed)
		c.publisher.Publish(cache.Event{Type: cache.EventExpired, Removed: removed, At: now})
		c.log.Debug("expired records purged", zap.Int64("removed", removed))
	}
	return removed, nil
}

func (c *Cleaner) refreshGauge(ctx context.Context) error {
	n, err := c.store.Count(ctx)
	if err != nil {
		return err
	}
	monitoring.SetCacheEntries(int(n))
	return nil
}
