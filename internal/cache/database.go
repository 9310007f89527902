package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/kvcache/internal/models"
)

var errStoreNotInitialised = errors.New("cache: database store not initialised")

// snapshotOrder mirrors SnapshotLess in SQL.
var snapshotOrder = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "expires"}},
	{Column: clause.Column{Name: "count"}},
	{Column: clause.Column{Name: "created_at"}},
	{Column: clause.Column{Name: "id"}},
}}

var recentOrder = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "updated_at"}, Desc: true},
	{Column: clause.Column{Name: "id"}, Desc: true},
}}

// DatabaseStore implements Store on top of the primary SQL database.
// SQL has no per-row TTL, so every read filters on expires and the
// maintenance sweep purges what has lapsed.
type DatabaseStore struct {
	db    *gorm.DB
	clock Clock
}

// StoreOption customises a DatabaseStore.
type StoreOption func(*DatabaseStore)

// WithStoreClock overrides the clock used to decide liveness.
func WithStoreClock(clock Clock) StoreOption {
	return func(s *DatabaseStore) {
		s.clock = clock
	}
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB, opts ...StoreOption) *DatabaseStore {
	if db == nil {
		return nil
	}
	store := &DatabaseStore{db: db}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// FindAll returns the ordered live snapshot.
func (s *DatabaseStore) FindAll(ctx context.Context) ([]Descriptor, error) {
	if s == nil {
		return nil, errStoreNotInitialised
	}

	var rows []Descriptor
	err := s.session(ctx).
		Model(&models.CacheEntry{}).
		Select("id", "key", "count", "expires", "created_at").
		Where(liveAt(s.clock.Now())).
		Clauses(snapshotOrder).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert writes patch to target inside a single transaction.
func (s *DatabaseStore) Upsert(ctx context.Context, target Target, patch Patch) (*models.CacheEntry, error) {
	if s == nil {
		return nil, errStoreNotInitialised
	}
	if patch.Key == "" {
		patch.Key = target.Key
	}
	if patch.Key == "" {
		return nil, errors.New("cache: upsert requires a key")
	}

	now := s.clock.Now()
	var out models.CacheEntry

	err := s.session(ctx).Transaction(func(tx *gorm.DB) error {
		// A lapsed row for the key would still hold the unique index.
		if err := tx.Where(keyEquals(patch.Key)).Where(expiredAt(now)).
			Delete(&models.CacheEntry{}).Error; err != nil {
			return err
		}

		if target.IsEviction() {
			return overwriteByID(tx, target.ID, patch, &out)
		}
		return upsertByKey(tx, patch, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func overwriteByID(tx *gorm.DB, id string, patch Patch, out *models.CacheEntry) error {
	// A concurrent writer may have admitted the key after the caller's
	// snapshot; the write then lands on that record and the victim survives.
	var held int64
	if err := tx.Model(&models.CacheEntry{}).Where(keyEquals(patch.Key)).Count(&held).Error; err != nil {
		return err
	}
	if held > 0 {
		return upsertByKey(tx, patch, out)
	}

	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(out, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The victim vanished between snapshot and write; insert instead.
		*out = newEntry(patch)
		return tx.Create(out).Error
	}
	if err != nil {
		return err
	}

	out.Key = patch.Key
	out.Count = patch.Count
	out.Expires = patch.Expires
	if patch.Value != nil {
		out.Value = *patch.Value
	}
	return tx.Save(out).Error
}

func upsertByKey(tx *gorm.DB, patch Patch, out *models.CacheEntry) error {
	columns := []string{"count", "expires", "updated_at"}
	if patch.Value != nil {
		columns = append(columns, "value")
	}

	entry := newEntry(patch)
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&entry).Error
	if err != nil {
		return err
	}

	// On conflict the generated id and created_at are not the stored ones.
	return tx.Where(keyEquals(patch.Key)).Take(out).Error
}

func newEntry(patch Patch) models.CacheEntry {
	entry := models.CacheEntry{
		Key:     patch.Key,
		Count:   patch.Count,
		Expires: patch.Expires,
	}
	if patch.Value != nil {
		entry.Value = *patch.Value
	}
	return entry
}

// FindOne returns the live record for key, or nil when absent.
func (s *DatabaseStore) FindOne(ctx context.Context, key string) (*models.CacheEntry, error) {
	if s == nil {
		return nil, errStoreNotInitialised
	}

	var entry models.CacheEntry
	err := s.session(ctx).Where(keyEquals(key)).Where(liveAt(s.clock.Now())).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteOne removes the record for key and returns it when it was live.
func (s *DatabaseStore) DeleteOne(ctx context.Context, key string) (*models.CacheEntry, error) {
	if s == nil {
		return nil, errStoreNotInitialised
	}

	now := s.clock.Now()
	var (
		entry   models.CacheEntry
		removed bool
	)

	err := s.session(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(keyEquals(key)).Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res := tx.Delete(&models.CacheEntry{}, "id = ?", entry.ID)
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0 && entry.Live(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, nil
	}
	return &entry, nil
}

// DeleteAll removes every record and returns the number of live ones removed.
func (s *DatabaseStore) DeleteAll(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errStoreNotInitialised
	}

	now := s.clock.Now()
	var removed int64

	err := s.session(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(expiredAt(now)).Delete(&models.CacheEntry{}).Error; err != nil {
			return err
		}
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CacheEntry{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// RecentKeys lists live keys ordered by most recent update.
func (s *DatabaseStore) RecentKeys(ctx context.Context, limit int) ([]string, error) {
	if s == nil {
		return nil, errStoreNotInitialised
	}

	query := s.session(ctx).
		Model(&models.CacheEntry{}).
		Where(liveAt(s.clock.Now())).
		Clauses(recentOrder)
	if limit > 0 {
		query = query.Limit(limit)
	}

	keys := make([]string, 0)
	if err := query.Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteExpired purges records that lapsed at or before now.
func (s *DatabaseStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil {
		return 0, errStoreNotInitialised
	}

	res := s.session(ctx).Where(expiredAt(now.UTC())).Delete(&models.CacheEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Count returns the number of live records.
func (s *DatabaseStore) Count(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errStoreNotInitialised
	}

	var total int64
	err := s.session(ctx).Model(&models.CacheEntry{}).Where(liveAt(s.clock.Now())).Count(&total).Error
	return total, err
}

// Ping checks that the underlying database answers.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	if s == nil {
		return errStoreNotInitialised
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ensureContext(ctx))
}

func (s *DatabaseStore) session(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ensureContext(ctx))
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// key is reserved in MySQL, so conditions on it go through quoted clauses.
func keyEquals(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func liveAt(now time.Time) clause.Expression {
	return clause.Gt{Column: clause.Column{Name: "expires"}, Value: now}
}

func expiredAt(now time.Time) clause.Expression {
	return clause.Lte{Column: clause.Column{Name: "expires"}, Value: now}
}
