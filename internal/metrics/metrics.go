// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Authentication
	IncAuthOutcome(method, outcome string) // outcome: "success", "invalid", "missing", "error"
	IncRateLimited(scope string)           // scope: "ip" or "user"

	// Ingestion
	IncEventIngested(status string)       // status: "accepted", "quota_exceeded", "invalid", "unknown_category"
	IncCategoryCacheLookup(result string) // result: "hit", "miss", "negative"

	// Notification collaborator
	IncNotificationPublished(status string)   // status: "success" or "dropped"
	IncDeliveryReportProcessed(status string) // status: "applied", "skipped", "dead_lettered", "failed"
	SetDeliveryQueueDepth(depth int64)

	// HTTP
	ObserveRequestDuration(method string, status int, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
