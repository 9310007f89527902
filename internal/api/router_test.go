package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/kvcache/internal/api"
	"github.com/charlesng35/kvcache/internal/app"
	iauth "github.com/charlesng35/kvcache/internal/auth"
	"github.com/charlesng35/kvcache/internal/cache"
	"github.com/charlesng35/kvcache/internal/handlers/testutil"
	"github.com/charlesng35/kvcache/internal/realtime"
	"github.com/charlesng35/kvcache/internal/services"
)

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(api.Deps{})
	require.Error(t, err)

	_, err = api.NewRouter(api.Deps{Config: &app.Config{}})
	require.Error(t, err)
}

func TestNewRouterRequiresJWTWhenAuthEnabled(t *testing.T) {
	policy, err := cache.NewPolicy(1, time.Minute, cache.Now)
	require.NoError(t, err)
	svc, err := services.NewCacheService(cache.NewMemoryStore(cache.Now), services.CacheServiceConfig{Policy: policy, ValueLength: 4})
	require.NoError(t, err)

	cfg := &app.Config{Auth: app.AuthConfig{JWT: app.JWTSettings{Enabled: true}}}
	_, err = api.NewRouter(api.Deps{Config: cfg, Cache: svc})
	require.Error(t, err)
}

func TestIndexAndFallbackRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Hello World!!!!", testutil.DecodeResponse(t, w).Message)
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = env.Request(http.MethodGet, "/nope", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "NOT_FOUND", resp.Error.Code)

	w = env.Request(http.MethodPatch, "/api/cache/k", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, "METHOD_NOT_ALLOWED", testutil.DecodeResponse(t, w).Error.Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/api/health/ready"} {
		w := env.Request(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, path+": "+w.Body.String())
	}

	env.Request(http.MethodPut, "/api/cache/k", map[string]string{"value": "v"}, "")

	w := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `kvcache_cache_writes_total{kind="insert"} 1`)
}

func TestMonitoringSummaryRoute(t *testing.T) {
	env := testutil.NewEnv(t)

	env.Request(http.MethodGet, "/api/cache/miss", nil, "")
	env.Request(http.MethodGet, "/api/cache/miss", nil, "")

	w := env.Request(http.MethodGet, "/api/monitoring/summary", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		Summary struct {
			Cache struct {
				Hits    uint64 `json:"hits"`
				Misses  uint64 `json:"misses"`
				Inserts uint64 `json:"inserts"`
			} `json:"cache"`
		} `json:"summary"`
		Occupancy struct {
			Entries    int64 `json:"entries"`
			MaxEntries int   `json:"max_entries"`
		} `json:"occupancy"`
		Prometheus struct {
			Enabled  bool   `json:"enabled"`
			Endpoint string `json:"endpoint"`
		} `json:"prometheus"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.Equal(t, uint64(1), payload.Summary.Cache.Hits)
	require.Equal(t, uint64(1), payload.Summary.Cache.Misses)
	require.Equal(t, uint64(1), payload.Summary.Cache.Inserts)
	require.Equal(t, int64(1), payload.Occupancy.Entries)
	require.Equal(t, 2, payload.Occupancy.MaxEntries)
	require.True(t, payload.Prometheus.Enabled)
	require.Equal(t, "/metrics", payload.Prometheus.Endpoint)
}

func TestRealtimeStreamDeliversCacheEvents(t *testing.T) {
	env := testutil.NewEnv(t)

	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/cache"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return env.Hub.Subscribers(realtime.StreamCacheEvents) == 1
	}, 2*time.Second, 10*time.Millisecond)

	env.Request(http.MethodPut, "/api/cache/live", map[string]string{"value": "v"}, "")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg realtime.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, realtime.StreamCacheEvents, msg.Stream)
	require.Equal(t, string(cache.EventCreated), msg.Event)
}

func TestRealtimeStreamRequiresTokenWhenAuthEnabled(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithAuth())

	w := env.Request(http.MethodGet, "/ws/cache", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	writeOnly := env.Token("writer", iauth.ScopeWrite)
	w = env.Request(http.MethodGet, "/ws/cache?token="+writeOnly, nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	reader := env.Token("reader", iauth.ScopeRead)
	w = env.Request(http.MethodGet, "/ws/cache?stream=unknown&token="+reader, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
