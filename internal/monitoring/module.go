package monitoring

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "kvcache"

// Options control monitoring module configuration.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "kvcache".
	Namespace               string
	DisableGoCollector      bool
	DisableProcessCollector bool
}

// Module owns a private Prometheus registry, the cache metrics, the
// in-process counters behind Snapshot and the health manager.
type Module struct {
	registry *prometheus.Registry
	metrics  *metricSet
	stats    *statStore
	health   *HealthManager
}

// NewModule builds a module around a fresh registry so tests and parallel
// servers never collide on metric registration.
func NewModule(opts Options) (*Module, error) {
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}

	registry := prometheus.NewRegistry()
	var runtime []prometheus.Collector
	if !opts.DisableGoCollector {
		runtime = append(runtime, collectors.NewGoCollector())
	}
	if !opts.DisableProcessCollector {
		runtime = append(runtime, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	metrics := newMetricSet(opts.Namespace)
	for _, c := range append(runtime, metrics.all()...) {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Module{
		registry: registry,
		metrics:  metrics,
		stats:    newStatStore(),
		health:   NewHealthManager(),
	}, nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. A nil
// module answers 503.
func (m *Module) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Summary returns the module's point-in-time statistics.
func (m *Module) Summary() Summary {
	if m == nil {
		return Summary{GeneratedAt: time.Now()}
	}
	return m.stats.summary()
}

// Health returns the probe manager.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var current atomic.Pointer[Module]

// SetModule installs module as the target of the package level Record*
// helpers. Nil is ignored.
func SetModule(module *Module) {
	if module != nil {
		current.Store(module)
	}
}

// CurrentModule returns the installed module, or nil.
func CurrentModule() *Module {
	return current.Load()
}

func ensureModule() *Module {
	return current.Load()
}
