package cache

import (
	"context"
	"sort"
	"time"

	"github.com/charlesng35/kvcache/internal/models"
)

// Descriptor is the lightweight projection of a live record used for
// eviction decisions.
type Descriptor struct {
	ID        string
	Key       string
	Count     int
	Expires   time.Time
	CreatedAt time.Time
}

// Target selects the row an upsert writes to: by id for an eviction
// overwrite, by key otherwise.
type Target struct {
	ID  string
	Key string
}

// ByKey targets the record holding key.
func ByKey(key string) Target { return Target{Key: key} }

// ByID targets the record with the given id.
func ByID(id string) Target { return Target{ID: id} }

// IsEviction reports whether the target addresses a record by id.
func (t Target) IsEviction() bool { return t.ID != "" }

// Patch carries the fields of one write. A nil Value leaves the stored
// value untouched.
type Patch struct {
	Key     string
	Value   *string
	Count   int
	Expires time.Time
}

// Store is the persistence contract consumed by the cache service. Every
// read only sees live records, that is records whose expiry lies after the
// store's clock.
type Store interface {
	// FindAll returns live descriptors ordered by SnapshotLess.
	FindAll(ctx context.Context) ([]Descriptor, error)
	// Upsert writes patch to target atomically, inserting a new record when
	// target matches nothing, and returns the resulting record.
	Upsert(ctx context.Context, target Target, patch Patch) (*models.CacheEntry, error)
	// FindOne returns the live record for key or nil.
	FindOne(ctx context.Context, key string) (*models.CacheEntry, error)
	// DeleteOne removes key and returns the removed live record or nil.
	DeleteOne(ctx context.Context, key string) (*models.CacheEntry, error)
	// DeleteAll removes every record and returns how many live records went.
	DeleteAll(ctx context.Context) (int64, error)
	// RecentKeys lists live keys, most recently updated first.
	RecentKeys(ctx context.Context, limit int) ([]string, error)
	// DeleteExpired purges records whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// Count returns the number of live records.
	Count(ctx context.Context) (int64, error)
}

// SnapshotLess orders descriptors from least to most valuable: earlier
// expiry first, then lower count, then earlier creation, then lower id.
func SnapshotLess(a, b Descriptor) bool {
	if !a.Expires.Equal(b.Expires) {
		return a.Expires.Before(b.Expires)
	}
	if a.Count != b.Count {
		return a.Count < b.Count
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortSnapshot sorts descriptors in place by SnapshotLess.
func SortSnapshot(snapshot []Descriptor) {
	sort.SliceStable(snapshot, func(i, j int) bool {
		return SnapshotLess(snapshot[i], snapshot[j])
	})
}

func describe(entry *models.CacheEntry) Descriptor {
	return Descriptor{
		ID:        entry.ID,
		Key:       entry.Key,
		Count:     entry.Count,
		Expires:   entry.Expires,
		CreatedAt: entry.CreatedAt,
	}
}
