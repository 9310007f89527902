package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/kvcache/internal/auth"
	"github.com/charlesng35/kvcache/internal/handlers/testutil"
	"github.com/charlesng35/kvcache/internal/models"
)

func decodeEntry(t *testing.T, resp testutil.APIResponse) models.CacheEntry {
	t.Helper()
	var entry models.CacheEntry
	testutil.DecodeInto(t, resp.Data, &entry)
	return entry
}

func TestCacheSetThenGet(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPut, "/api/cache/alpha", map[string]string{"value": "one"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.True(t, resp.Success)
	require.Equal(t, "Cache Created", resp.Message)

	created := decodeEntry(t, resp)
	require.Equal(t, "alpha", created.Key)
	require.Equal(t, "one", created.Value)
	require.Equal(t, 1, created.Count)
	require.True(t, created.Expires.Equal(env.Clock.Now().Add(time.Hour)))

	env.Clock.Advance(time.Minute)
	w = env.Request(http.MethodGet, "/api/cache/alpha", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = testutil.DecodeResponse(t, w)
	require.Equal(t, "Cache Data", resp.Message)
	require.NotNil(t, resp.Hit)
	require.True(t, *resp.Hit)

	got := decodeEntry(t, resp)
	require.Equal(t, "one", got.Value)
	require.Equal(t, 2, got.Count)
	require.True(t, got.Expires.Equal(env.Clock.Now().Add(time.Hour)))
	require.Empty(t, env.Values)
}

func TestCacheSetAcceptsPostAndEmptyValue(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/cache/blank", map[string]string{"value": ""}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "", decodeEntry(t, testutil.DecodeResponse(t, w)).Value)
}

func TestCacheGetMissGeneratesValue(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/cache/fresh", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.NotNil(t, resp.Hit)
	require.False(t, *resp.Hit)

	entry := decodeEntry(t, resp)
	require.Equal(t, "gen-1", entry.Value)
	require.Equal(t, 1, entry.Count)

	w = env.Request(http.MethodGet, "/api/cache/fresh", nil, "")
	resp = testutil.DecodeResponse(t, w)
	require.True(t, *resp.Hit)
	require.Equal(t, "gen-1", decodeEntry(t, resp).Value)
}

func TestCacheEvictsLeastValuableAtCapacity(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithMaxEntries(2))

	for _, key := range []string{"a", "b"} {
		w := env.Request(http.MethodPut, "/api/cache/"+key, map[string]string{"value": key}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		env.Clock.Advance(time.Second)
	}

	w := env.Request(http.MethodPut, "/api/cache/c", map[string]string{"value": "c"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/cache", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "Cache Keys", resp.Message)

	var keys []string
	testutil.DecodeInto(t, resp.Data, &keys)
	require.ElementsMatch(t, []string{"b", "c"}, keys)
	require.NotNil(t, resp.Meta)
	require.Equal(t, 2, resp.Meta.PerPage)
	require.Equal(t, 2, resp.Meta.Total)
}

func TestCacheListLimit(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithMaxEntries(5))

	for _, key := range []string{"a", "b", "c"} {
		env.Request(http.MethodPut, "/api/cache/"+key, map[string]string{"value": key}, "")
	}

	w := env.Request(http.MethodGet, "/api/cache?limit=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var keys []string
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &keys)
	require.Equal(t, []string{"c"}, keys)

	for _, bad := range []string{"-1", "abc"} {
		w = env.Request(http.MethodGet, "/api/cache?limit="+bad, nil, "")
		require.Equal(t, http.StatusBadRequest, w.Code, bad)
		require.Equal(t, "limit must be a non-negative integer", testutil.DecodeResponse(t, w).Error.Message)
	}

	w = env.Request(http.MethodGet, "/api/cache?limit=1000000000", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "limit must not exceed 1000", testutil.DecodeResponse(t, w).Error.Message)

	w = env.Request(http.MethodGet, "/api/cache?limit=1000", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &keys)
	require.Len(t, keys, 3)
}

func TestCacheDeleteKey(t *testing.T) {
	env := testutil.NewEnv(t)

	env.Request(http.MethodPut, "/api/cache/gone", map[string]string{"value": "x"}, "")

	w := env.Request(http.MethodDelete, "/api/cache/gone", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "Cache Key Removed", resp.Message)
	require.NotNil(t, resp.Deleted)
	require.True(t, *resp.Deleted)
	require.Equal(t, "gone", decodeEntry(t, resp).Key)

	w = env.Request(http.MethodDelete, "/api/cache/gone", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp = testutil.DecodeResponse(t, w)
	require.False(t, *resp.Deleted)
	require.True(t, len(resp.Data) == 0 || string(resp.Data) == "null", string(resp.Data))
}

func TestCacheDeleteAllAndStats(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithMaxEntries(3))

	for _, key := range []string{"a", "b"} {
		env.Request(http.MethodPut, "/api/cache/"+key, map[string]string{"value": key}, "")
	}

	w := env.Request(http.MethodGet, "/api/cache/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats struct {
		Entries       int64 `json:"entries"`
		MaxEntries    int   `json:"max_entries"`
		MaxAgeSeconds int64 `json:"max_age_seconds"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &stats)
	require.Equal(t, int64(2), stats.Entries)
	require.Equal(t, 3, stats.MaxEntries)
	require.Equal(t, int64(3600), stats.MaxAgeSeconds)

	w = env.Request(http.MethodDelete, "/api/cache", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "Cache Removed", resp.Message)
	var removed struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	testutil.DecodeInto(t, resp.Data, &removed)
	require.Equal(t, int64(2), removed.DeletedCount)

	w = env.Request(http.MethodGet, "/api/cache", nil, "")
	var keys []string
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &keys)
	require.Empty(t, keys)
}

func TestCacheExpiredRecordIsMiss(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithMaxAge(time.Minute))

	env.Request(http.MethodPut, "/api/cache/short", map[string]string{"value": "v"}, "")
	env.Clock.Advance(2 * time.Minute)

	w := env.Request(http.MethodGet, "/api/cache/short", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.False(t, *resp.Hit)
	require.Equal(t, "gen-1", decodeEntry(t, resp).Value)
}

func TestCacheRejectsBadInput(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPut, "/api/cache/k", map[string]string{}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "value is required")

	w = env.Request(http.MethodPut, "/api/cache/k", "{not json", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	long := strings.Repeat("k", 257)
	w = env.Request(http.MethodPut, "/api/cache/"+long, map[string]string{"value": "v"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "invalid key")

	w = env.Request(http.MethodGet, "/api/cache/"+long, nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCacheWithMemoryStore(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithMemoryStore())

	w := env.Request(http.MethodPut, "/api/cache/m", map[string]string{"value": "mem"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/cache/m", nil, "")
	resp := testutil.DecodeResponse(t, w)
	require.True(t, *resp.Hit)
	require.Equal(t, "mem", decodeEntry(t, resp).Value)
}

func TestCacheRoutesRequireTokenWhenAuthEnabled(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithAuth())

	w := env.Request(http.MethodGet, "/api/cache", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	reader := env.Token("reader", iauth.ScopeRead)
	w = env.Request(http.MethodGet, "/api/cache", nil, reader)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodPut, "/api/cache/k", map[string]string{"value": "v"}, reader)
	require.Equal(t, http.StatusForbidden, w.Code)

	// A read miss writes, so GET by key needs both scopes.
	w = env.Request(http.MethodGet, "/api/cache/k", nil, reader)
	require.Equal(t, http.StatusForbidden, w.Code)

	writer := env.Token("writer", iauth.ScopeRead, iauth.ScopeWrite)
	w = env.Request(http.MethodPut, "/api/cache/k", map[string]string{"value": "v"}, writer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitAppliesToCacheRoutes(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(2))

	for i := 0; i < 2; i++ {
		w := env.Request(http.MethodGet, "/api/cache", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := env.Request(http.MethodGet, "/api/cache", nil, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}
