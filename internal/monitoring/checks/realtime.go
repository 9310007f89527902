package checks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charlesng35/kvcache/internal/monitoring"
)

// RealtimeObserver exposes the hub state the probe reports on.
type RealtimeObserver interface {
	ActiveConnections() int64
}

// Realtime reports the event hub degraded while deliveries keep failing:
// when the failure counter moved since the previous probe. A nil observer
// means the hub is not running.
func Realtime(observer RealtimeObserver) monitoring.Check {
	var (
		mu       sync.Mutex
		lastSeen uint64
	)

	return monitoring.NewCheck("realtime", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if observer == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "realtime hub unavailable",
				Duration: time.Since(start),
			}
		}

		failures := monitoring.Snapshot().Realtime.Failures
		mu.Lock()
		fresh := failures - lastSeen
		if failures < lastSeen {
			fresh = failures
		}
		lastSeen = failures
		mu.Unlock()

		result := monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%d connections", observer.ActiveConnections()),
			Duration: time.Since(start),
		}
		if fresh > 0 {
			result.Status = monitoring.StatusDegraded
			result.Details += fmt.Sprintf("; %d delivery failures since last probe", fresh)
		}
		return result
	})
}
