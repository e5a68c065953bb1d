package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
// Labelled counters are keyed "label" or "label1/label2".
type Snapshot struct {
	AuthOutcomes       map[string]uint64
	RateLimited        map[string]uint64
	EventsIngested     map[string]uint64
	CategoryCache      map[string]uint64
	NotificationsSent  map[string]uint64
	DeliveryReports    map[string]uint64
	DeliveryQueueDepth int64
	RequestCount       uint64
	RequestDurationNs  int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu                sync.Mutex
	counters          map[string]map[string]uint64
	queueDepth        int64
	requestCount      uint64
	requestDurationNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{counters: map[string]map[string]uint64{}}
}

func (m *InMemoryRecorder) inc(family, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counters[family]
	if c == nil {
		c = map[string]uint64{}
		m.counters[family] = c
	}
	c[label]++
}

func (m *InMemoryRecorder) copyFamily(family string) map[string]uint64 {
	out := make(map[string]uint64, len(m.counters[family]))
	for k, v := range m.counters[family] {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		AuthOutcomes:       m.copyFamily("auth"),
		RateLimited:        m.copyFamily("ratelimit"),
		EventsIngested:     m.copyFamily("ingest"),
		CategoryCache:      m.copyFamily("category_cache"),
		NotificationsSent:  m.copyFamily("notify"),
		DeliveryReports:    m.copyFamily("delivery"),
		DeliveryQueueDepth: atomic.LoadInt64(&m.queueDepth),
		RequestCount:       atomic.LoadUint64(&m.requestCount),
		RequestDurationNs:  atomic.LoadInt64(&m.requestDurationNs),
	}
}

// IncAuthOutcome counts an authentication attempt.
func (m *InMemoryRecorder) IncAuthOutcome(method, outcome string) {
	m.inc("auth", method+"/"+outcome)
}

// IncRateLimited counts a throttled request.
func (m *InMemoryRecorder) IncRateLimited(scope string) { m.inc("ratelimit", scope) }

// IncEventIngested counts an ingestion attempt.
func (m *InMemoryRecorder) IncEventIngested(status string) { m.inc("ingest", status) }

// IncCategoryCacheLookup counts a category cache lookup.
func (m *InMemoryRecorder) IncCategoryCacheLookup(result string) { m.inc("category_cache", result) }

// IncNotificationPublished counts a notification hand-off.
func (m *InMemoryRecorder) IncNotificationPublished(status string) { m.inc("notify", status) }

// IncDeliveryReportProcessed counts a delivery report.
func (m *InMemoryRecorder) IncDeliveryReportProcessed(status string) { m.inc("delivery", status) }

// SetDeliveryQueueDepth records the report backlog.
func (m *InMemoryRecorder) SetDeliveryQueueDepth(depth int64) {
	atomic.StoreInt64(&m.queueDepth, depth)
}

// ObserveRequestDuration records one HTTP request.
func (m *InMemoryRecorder) ObserveRequestDuration(_ string, _ int, duration time.Duration) {
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddInt64(&m.requestDurationNs, duration.Nanoseconds())
}
