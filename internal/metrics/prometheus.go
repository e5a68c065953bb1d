package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pingpanda"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry        *prometheus.Registry
	authOutcomes    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	eventsIngested  *prometheus.CounterVec
	categoryCache   *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	deliveryReports *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// NewPrometheus creates a recorder with its own registry, including Go and
// process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	p := &PrometheusRecorder{
		registry: reg,
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Credential resolutions by method and outcome.",
		}, []string{"method", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"scope"}),
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Event ingestion attempts by status.",
		}, []string{"status"}),
		categoryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_cache_lookups_total",
			Help:      "Category cache lookups by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Events handed to the notification stream.",
		}, []string{"status"}),
		deliveryReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_reports_processed_total",
			Help:      "Delivery reports consumed by status.",
		}, []string{"status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delivery_reports_queue_depth",
			Help:      "Pending plus undelivered delivery reports.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		p.authOutcomes,
		p.rateLimited,
		p.eventsIngested,
		p.categoryCache,
		p.notifications,
		p.deliveryReports,
		p.queueDepth,
		p.requestDuration,
	)
	return p
}

// Handler serves the registry in exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *PrometheusRecorder) IncAuthOutcome(method, outcome string) {
	p.authOutcomes.WithLabelValues(method, outcome).Inc()
}

func (p *PrometheusRecorder) IncRateLimited(scope string) {
	p.rateLimited.WithLabelValues(scope).Inc()
}

func (p *PrometheusRecorder) IncEventIngested(status string) {
	p.eventsIngested.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncCategoryCacheLookup(result string) {
	p.categoryCache.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncNotificationPublished(status string) {
	p.notifications.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncDeliveryReportProcessed(status string) {
	p.deliveryReports.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) SetDeliveryQueueDepth(depth int64) {
	p.queueDepth.Set(float64(depth))
}

func (p *PrometheusRecorder) ObserveRequestDuration(method string, status int, duration time.Duration) {
	p.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(duration.Seconds())
}
