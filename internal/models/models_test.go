package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	parsed, err := uuid.Parse(base.ID)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), parsed.Version())
}

func TestBaseModelBeforeCreateKeepsExistingID(t *testing.T) {
	base := BaseModel{ID: "fixed"}
	require.NoError(t, base.BeforeCreate(nil))
	require.Equal(t, "fixed", base.ID)
}

func TestBaseModelIDsSortInCreationOrder(t *testing.T) {
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		var base BaseModel
		require.NoError(t, base.BeforeCreate(nil))
		ids = append(ids, base.ID)
	}
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i])
	}
}

func TestCacheEntryBeforeSaveNormalises(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	entry := &CacheEntry{Key: "a", Value: "1", Expires: time.Date(2026, 1, 1, 12, 0, 0, 0, loc)}

	require.NoError(t, entry.BeforeSave(nil))
	require.Equal(t, time.UTC, entry.Expires.Location())
	require.Equal(t, 10, entry.Expires.Hour())
	require.Equal(t, 1, entry.Count)
}

func TestCacheEntryLive(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := &CacheEntry{Expires: now.Add(time.Second)}

	require.True(t, entry.Live(now))
	require.False(t, entry.Live(now.Add(time.Second)))

	var missing *CacheEntry
	require.False(t, missing.Live(now))
	require.Equal(t, "cache_entries", CacheEntry{}.TableName())
}
