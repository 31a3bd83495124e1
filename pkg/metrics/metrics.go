package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devconnect",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "devconnect",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RelayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "devconnect",
		Name:      "relay_connections",
		Help:      "WebSocket clients connected to this instance.",
	})

	// result: delivered / forwarded / offline / dropped
	RelayEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devconnect",
		Name:      "relay_events_total",
		Help:      "Real-time events by type and delivery result.",
	}, []string{"type", "result"})

	StoreRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devconnect",
		Name:      "store_retries_total",
		Help:      "Transient store failures that were retried.",
	})
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests,
		HTTPDuration,
		RelayConnections,
		RelayEvents,
		StoreRetries,
	)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
