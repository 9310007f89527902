package monitoring

import (
	"strings"
	"time"
)

// RecordCacheLookup counts a read as a hit or a miss.
func RecordCacheLookup(hit bool) {
	module := ensureModule()
	if module == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	module.metrics.cacheLookups.WithLabelValues(result).Inc()
	module.stats.recordLookup(hit)
}

// RecordCacheWrite counts a completed write by decision kind (insert,
// update or evict). Evictions also bump the dedicated eviction counter.
func RecordCacheWrite(kind string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(kind)
	module.metrics.cacheWrites.WithLabelValues(label).Inc()
	if label == "evict" {
		module.metrics.cacheEvictions.Inc()
	}
	module.stats.recordWrite(label)
}

// RecordCacheDelete counts records removed by delete-one or delete-all.
func RecordCacheDelete(operation string, removed int64) {
	module := ensureModule()
	if module == nil || removed <= 0 {
		return
	}
	module.metrics.cacheDeletes.WithLabelValues(normalizeLabel(operation)).Add(float64(removed))
	module.stats.deleted.Add(uint64(removed))
}

// RecordCacheExpired counts records purged by the expiry sweep.
func RecordCacheExpired(removed int64) {
	module := ensureModule()
	if module == nil || removed <= 0 {
		return
	}
	module.metrics.cacheExpired.Add(float64(removed))
	module.stats.expired.Add(uint64(removed))
}

// SetCacheEntries publishes the current live record count.
func SetCacheEntries(n int) {
	module := ensureModule()
	if module == nil {
		return
	}
	if n < 0 {
		n = 0
	}
	module.metrics.cacheEntries.Set(float64(n))
	module.stats.entries.Store(int64(n))
}

// RecordStoreError counts a store adapter failure and keeps the last message.
// reason classifies the failure, e.g. timeout or conflict.
func RecordStoreError(operation, reason, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	op := normalizeLabel(operation)
	module.metrics.storeErrors.WithLabelValues(op, normalizeLabel(reason)).Inc()
	module.stats.recordStoreError(FailureRecord{
		Stream:   "store",
		Type:     op,
		Message:  strings.TrimSpace(message),
		Occurred: time.Now(),
	})
}

// ObserveCacheOperation records the latency of one cache service call.
func ObserveCacheOperation(operation, result string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	observeDuration(module.metrics.operationLatency.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)), duration)
}

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordRealtimeConnection adjusts the websocket connection gauge.
func RecordRealtimeConnection(delta int64) {
	module := ensureModule()
	if module == nil || delta == 0 {
		return
	}
	module.metrics.realtimeConnections.Add(float64(delta))
	if module.stats.realtimeConnections.Add(delta) < 0 {
		module.stats.realtimeConnections.Store(0)
		module.metrics.realtimeConnections.Set(0)
	}
}

// RecordRealtimeSubscription tracks subscribe/unsubscribe events.
func RecordRealtimeSubscription(stream, action string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.realtimeSubscriptions.WithLabelValues(normalizePath(stream), normalizeLabel(action)).Inc()
}

// RecordRealtimeBroadcast increments broadcast counters per stream.
func RecordRealtimeBroadcast(stream string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.realtimeBroadcasts.WithLabelValues(normalizePath(stream)).Inc()
	module.stats.realtimeBroadcasts.Add(1)
}

// RecordRealtimeFailure snapshots a realtime failure occurrence.
func RecordRealtimeFailure(stream, failureType, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	stream = normalizePath(stream)
	failureType = normalizeLabel(failureType)
	module.metrics.realtimeFailures.WithLabelValues(stream, failureType).Inc()
	module.stats.recordRealtimeFailure(FailureRecord{
		Stream:   stream,
		Type:     failureType,
		Message:  strings.TrimSpace(message),
		Occurred: time.Now(),
	})
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.maintenanceEntry(jobID).record(result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	return normalizePath(path)
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
