package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncAuthOutcome(method, outcome string) {}
func (n *NoopRecorder) IncRateLimited(scope string) {}
func (n *NoopRecorder) IncEventIngested(status string) {}
func (n *NoopRecorder) IncCategoryCacheLookup(result string) {}
func (n *NoopRecorder) IncNotificationPublished(status string) {}
func (n *NoopRecorder) IncDeliveryReportProcessed(status string) {}
func (n *NoopRecorder) SetDeliveryQueueDepth(depth int64) {}
func (n *NoopRecorder) ObserveRequestDuration(string, int, time.Duration) {}
