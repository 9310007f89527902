package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/charlesng35/kvcache/internal/models"
)

// MemoryStore keeps records in process memory. It honours the same
// contract as DatabaseStore and suits single-node deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   Clock
	entries map[string]*models.CacheEntry // keyed by id
	byKey   map[string]string             // key -> id
	written map[string]uint64             // id -> write sequence
	seq     uint64
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore(clock Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]*models.CacheEntry),
		byKey:   make(map[string]string),
		written: make(map[string]uint64),
	}
}

// FindAll returns the ordered live snapshot.
func (s *MemoryStore) FindAll(ctx context.Context) ([]Descriptor, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	snapshot := make([]Descriptor, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Live(now) {
			snapshot = append(snapshot, describe(entry))
		}
	}
	SortSnapshot(snapshot)
	return snapshot, nil
}

// Upsert writes patch to target under the store lock.
func (s *MemoryStore) Upsert(ctx context.Context, target Target, patch Patch) (*models.CacheEntry, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	if patch.Key == "" {
		patch.Key = target.Key
	}
	if patch.Key == "" {
		return nil, errors.New("cache: upsert requires a key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if id, ok := s.byKey[patch.Key]; ok && !s.entries[id].Live(now) {
		s.removeLocked(id)
	}

	// A concurrent writer may have admitted the key after the caller's
	// snapshot; the write then lands on that record and the victim survives.
	var entry *models.CacheEntry
	if id, ok := s.byKey[patch.Key]; ok {
		entry = s.entries[id]
	} else if target.IsEviction() {
		entry = s.entries[target.ID]
	}

	if entry == nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		entry = &models.CacheEntry{BaseModel: models.BaseModel{ID: id.String(), CreatedAt: now}}
		s.entries[entry.ID] = entry
	} else if entry.Key != patch.Key {
		delete(s.byKey, entry.Key)
	}

	entry.Key = patch.Key
	entry.Count = patch.Count
	if entry.Count < 1 {
		entry.Count = 1
	}
	entry.Expires = patch.Expires.UTC()
	entry.UpdatedAt = now
	if patch.Value != nil {
		entry.Value = *patch.Value
	}
	s.byKey[entry.Key] = entry.ID
	s.seq++
	s.written[entry.ID] = s.seq

	out := *entry
	return &out, nil
}

// FindOne returns the live record for key, or nil when absent.
func (s *MemoryStore) FindOne(ctx context.Context, key string) (*models.CacheEntry, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok || !s.entries[id].Live(s.clock.Now()) {
		return nil, nil
	}
	out := *s.entries[id]
	return &out, nil
}

// DeleteOne removes the record for key and returns it when it was live.
func (s *MemoryStore) DeleteOne(ctx context.Context, key string) (*models.CacheEntry, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	entry := *s.entries[id]
	s.removeLocked(id)
	if !entry.Live(s.clock.Now()) {
		return nil, nil
	}
	return &entry, nil
}

// DeleteAll removes every record and returns the number of live ones removed.
func (s *MemoryStore) DeleteAll(ctx context.Context) (int64, error) {
	if err := contextErr(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var removed int64
	for _, entry := range s.entries {
		if entry.Live(now) {
			removed++
		}
	}
	s.entries = make(map[string]*models.CacheEntry)
	s.byKey = make(map[string]string)
	s.written = make(map[string]uint64)
	return removed, nil
}

// RecentKeys lists live keys ordered by most recent update.
func (s *MemoryStore) RecentKeys(ctx context.Context, limit int) ([]string, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	live := make([]*models.CacheEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Live(now) {
			live = append(live, entry)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return s.written[live[i].ID] > s.written[live[j].ID]
	})
	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}

	keys := make([]string, 0, len(live))
	for _, entry := range live {
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

// DeleteExpired purges records that lapsed at or before now.
func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := contextErr(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, entry := range s.entries {
		if !entry.Live(now) {
			s.removeLocked(id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of live records.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	if err := contextErr(ctx); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	var total int64
	for _, entry := range s.entries {
		if entry.Live(now) {
			total++
		}
	}
	return total, nil
}

func (s *MemoryStore) removeLocked(id string) {
	entry, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	delete(s.written, id)
	if s.byKey[entry.Key] == id {
		delete(s.byKey, entry.Key)
	}
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
