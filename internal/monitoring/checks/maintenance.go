package checks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charlesng35/kvcache/internal/monitoring"
)

const defaultMaintenanceMaxAge = 15 * time.Minute

// Maintenance probes the scheduled cache jobs. A job whose latest run failed
// is down; a job whose latest run is older than maxAge (15m when zero) is
// degraded. Jobs that have not run yet are listed but stay up. When jobs is
// empty every recorded job is evaluated.
func Maintenance(maxAge time.Duration, jobs ...string) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		status := monitoring.StatusUp
		var notes []string

		for _, job := range monitoring.Snapshot().Maintenance.Jobs {
			if len(jobs) > 0 && !slices.Contains(jobs, job.Job) {
				continue
			}

			jobStatus, note := evaluateJob(job, start, maxAge)
			status = worstStatus(status, jobStatus)
			if note != "" {
				notes = append(notes, job.Job+": "+note)
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(notes, "; "),
			Duration: time.Since(start),
		}
	})
}

func evaluateJob(job monitoring.MaintenanceJobSummary, now time.Time, maxAge time.Duration) (monitoring.ProbeStatus, string) {
	switch {
	case job.TotalRuns == 0:
		return monitoring.StatusUp, "pending first run"
	case job.ConsecutiveFailures > 0:
		note := fmt.Sprintf("%d consecutive failures", job.ConsecutiveFailures)
		if job.LastError != "" {
			note += " (" + job.LastError + ")"
		}
		return monitoring.StatusDown, note
	case now.Sub(job.LastRunAt) > maxAge:
		return monitoring.StatusDegraded, "last run " + job.LastRunAt.UTC().Format(time.RFC3339)
	default:
		return monitoring.StatusUp, ""
	}
}

func worstStatus(a, b monitoring.ProbeStatus) monitoring.ProbeStatus {
	rank := func(s monitoring.ProbeStatus) int {
		switch s {
		case monitoring.StatusDown:
			return 2
		case monitoring.StatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
