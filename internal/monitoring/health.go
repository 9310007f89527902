package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDegraded ProbeStatus = "degraded"
	StatusDown     ProbeStatus = "down"
)

func (s ProbeStatus) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results. Success is false only when a probe
// is down: a degraded event stream or a late sweep does not stop the cache
// from serving requests.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

func newReport(results []ProbeResult) HealthReport {
	report := HealthReport{Status: StatusUp, Checks: results}
	for _, r := range results {
		if r.Status.severity() > report.Status.severity() {
			report.Status = r.Status
		}
	}
	report.Success = report.Status != StatusDown
	return report
}

// Check is a named dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck builds a Check. A nil fn yields a probe that always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

const defaultCheckTimeout = 5 * time.Second

type probeKind int

const (
	liveness probeKind = iota
	readiness
)

// HealthManager runs the registered liveness and readiness probes.
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[probeKind][]Check
	timeout time.Duration
}

// HealthOption customises a HealthManager.
type HealthOption func(*HealthManager)

// WithCheckTimeout bounds every individual probe.
func WithCheckTimeout(d time.Duration) HealthOption {
	return func(m *HealthManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewHealthManager constructs an empty health manager.
func NewHealthManager(opts ...HealthOption) *HealthManager {
	m := &HealthManager{
		checks:  make(map[probeKind][]Check),
		timeout: defaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterLiveness adds a probe answering "is the process working".
func (m *HealthManager) RegisterLiveness(check Check) { m.register(liveness, check) }

// RegisterReadiness adds a probe answering "can the cache serve requests".
func (m *HealthManager) RegisterReadiness(check Check) { m.register(readiness, check) }

func (m *HealthManager) register(kind probeKind, check Check) {
	if check.Name == "" || check.Run == nil {
		return
	}
	m.mu.Lock()
	m.checks[kind] = append(m.checks[kind], check)
	m.mu.Unlock()
}

// EvaluateLiveness runs every liveness probe.
func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, liveness)
}

// EvaluateReadiness runs every readiness probe.
func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, readiness)
}

func (m *HealthManager) evaluate(ctx context.Context, kind probeKind) HealthReport {
	m.mu.RLock()
	checks := append([]Check(nil), m.checks[kind]...)
	m.mu.RUnlock()

	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]ProbeResult, 0, len(checks))
	for _, check := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		results = append(results, runCheck(probeCtx, check))
		cancel()
	}
	return newReport(results)
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		result.Component = check.Name
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
	}()

	return check.Run(ctx)
}

// MergeReports folds liveness and readiness into one report.
func MergeReports(live, ready HealthReport) HealthReport {
	results := make([]ProbeResult, 0, len(live.Checks)+len(ready.Checks))
	results = append(results, live.Checks...)
	results = append(results, ready.Checks...)
	return newReport(results)
}

// ResultFromError maps err to a probe result. A timed out or cancelled probe
// is degraded, any other error is down.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	result := ProbeResult{Component: component, Status: StatusUp, Duration: max(duration, 0)}
	if err == nil {
		return result
	}

	result.Details = err.Error()
	result.Status = StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		result.Status = StatusDegraded
	}
	return result
}
