package monitoring

import "time"

// Summary surfaces aggregated runtime counters for the stats endpoint.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Cache       CacheSummary       `json:"cache"`
	Realtime    RealtimeSummary    `json:"realtime"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type CacheSummary struct {
	Entries        int64          `json:"entries"`
	Hits           uint64         `json:"hits"`
	Misses         uint64         `json:"misses"`
	HitRatio       float64        `json:"hit_ratio"`
	Inserts        uint64         `json:"inserts"`
	Updates        uint64         `json:"updates"`
	Evictions      uint64         `json:"evictions"`
	Deleted        uint64         `json:"deleted"`
	Expired        uint64         `json:"expired"`
	StoreErrors    uint64         `json:"store_errors"`
	LastStoreError *FailureRecord `json:"last_store_error,omitempty"`
}

type FailureRecord struct {
	Stream   string    `json:"stream"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Occurred time.Time `json:"occurred_at"`
}

type RealtimeSummary struct {
	ActiveConnections int64          `json:"active_connections"`
	Broadcasts        uint64         `json:"broadcasts"`
	Failures          uint64         `json:"failures"`
	LastFailure       *FailureRecord `json:"last_failure,omitempty"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	return ensureModule().Summary()
}
