package checks

import (
	"context"
	"time"

	"github.com/charlesng35/kvcache/internal/monitoring"
)

const defaultStoreTimeout = 2 * time.Second

// Pinger is implemented by stores backed by a remote connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store returns a readiness probe for the cache store. Stores that do not
// implement Pinger live in process and always report up.
func Store(store any, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("store", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "store not configured",
				Duration: time.Since(start),
			}
		}

		pinger, ok := store.(Pinger)
		if !ok {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "in-process store",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultStoreTimeout))
		defer cancel()

		if err := pinger.Ping(probeCtx); err != nil {
			return monitoring.ResultFromError("store", err, time.Since(start))
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
		}
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
