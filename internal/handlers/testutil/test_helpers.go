package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/kvcache/internal/api"
	"github.com/charlesng35/kvcache/internal/app"
	iauth "github.com/charlesng35/kvcache/internal/auth"
	"github.com/charlesng35/kvcache/internal/cache"
	sharedtestutil "github.com/charlesng35/kvcache/internal/database/testutil"
	"github.com/charlesng35/kvcache/internal/middleware"
	"github.com/charlesng35/kvcache/internal/monitoring"
	"github.com/charlesng35/kvcache/internal/monitoring/checks"
	"github.com/charlesng35/kvcache/internal/realtime"
	"github.com/charlesng35/kvcache/internal/services"
	"github.com/charlesng35/kvcache/pkg/response"
)

const jwtSecret = "test-suite-super-secret-key-32-bytes!!"

// Clock is a manually advanced clock shared by the store and the policy.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Store   cache.Store
	Cache   *services.CacheService
	Router  *gin.Engine
	JWT     *iauth.JWTService
	Hub     *realtime.Hub
	Module  *monitoring.Module
	Config  *app.Config
	Clock   *Clock
	Values  []string
	valueMu sync.Mutex
}

type envOptions struct {
	maxEntries int
	maxAge     time.Duration
	auth       bool
	memory     bool
	rateLimit  int
}

// Option customises NewEnv.
type Option func(*envOptions)

// WithMaxEntries overrides the capacity bound.
func WithMaxEntries(n int) Option { return func(o *envOptions) { o.maxEntries = n } }

// WithMaxAge overrides the record lifetime.
func WithMaxAge(d time.Duration) Option { return func(o *envOptions) { o.maxAge = d } }

// WithAuth enables bearer token authentication.
func WithAuth() Option { return func(o *envOptions) { o.auth = true } }

// WithMemoryStore uses the in-process store instead of sqlite.
func WithMemoryStore() Option { return func(o *envOptions) { o.memory = true } }

// WithRateLimit enables the rate limiter with n requests per minute.
func WithRateLimit(n int) Option { return func(o *envOptions) { o.rateLimit = n } }

// NewEnv provisions a fresh handler test environment. Generated values are
// deterministic: gen-1, gen-2 and so on.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	o := envOptions{maxEntries: 2, maxAge: time.Hour}
	for _, opt := range opts {
		opt(&o)
	}

	env := &Env{
		T:     t,
		Clock: &Clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	clock := cache.Clock(env.Clock.Now)

	if o.memory {
		env.Store = cache.NewMemoryStore(clock)
	} else {
		env.DB = sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
		env.Store = cache.NewDatabaseStore(env.DB, cache.WithStoreClock(clock))
	}

	module, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(module)
	module.Health().RegisterReadiness(checks.Store(env.Store, time.Second))
	env.Module = module

	env.Hub = realtime.NewHub()

	env.Config = &app.Config{
		Cache: app.CacheConfig{
			MaxEntries:  o.maxEntries,
			MaxAge:      int(o.maxAge / time.Second),
			ValueLength: 10,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Realtime: app.RealtimeConfig{Enabled: true},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Enabled: o.auth, Secret: jwtSecret, Issuer: "test-suite", TTL: time.Hour},
		},
	}
	if o.rateLimit > 0 {
		env.Config.Server.RateLimit = app.RateLimitConfig{Enabled: true, Requests: o.rateLimit, Window: time.Minute}
	}

	svcCfg, err := env.Config.Cache.ServiceConfig(clock, env.Hub)
	require.NoError(t, err)
	svcCfg.Generator = env.nextValue
	env.Cache, err = services.NewCacheService(env.Store, svcCfg)
	require.NoError(t, err)

	env.JWT, err = iauth.NewJWTService(env.Config.Auth.JWTServiceConfig())
	require.NoError(t, err)

	env.Router, err = api.NewRouter(api.Deps{
		Config:     env.Config,
		Cache:      env.Cache,
		JWT:        env.JWT,
		Hub:        env.Hub,
		Monitoring: module,
		RateStore:  middleware.NewMemoryRateStore(env.Clock.Now),
	})
	require.NoError(t, err)

	return env
}

func (e *Env) nextValue(int) (string, error) {
	e.valueMu.Lock()
	defer e.valueMu.Unlock()
	value := "gen-" + strconv.Itoa(len(e.Values)+1)
	e.Values = append(e.Values, value)
	return value, nil
}

// Token issues a token for subject with the given scopes.
func (e *Env) Token(subject string, scopes ...string) string {
	e.T.Helper()
	token, err := e.JWT.IssueToken(iauth.TokenInput{Subject: subject, Scopes: scopes})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
	Hit     *bool               `json:"hit"`
	Deleted *bool               `json:"deleted"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(e.T, json.NewEncoder(&buf).Encode(body))
		}
	}

	req, err := http.NewRequest(method, path, &buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
