// Package monitoring exposes Prometheus metrics for the session backend,
// including the global activity indicator driven by kernel busy leases.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsStarted prometheus.Counter
	KernelRestarts  prometheus.Counter
	KernelChanges   prometheus.Counter

	// Activity: one lease per kernel currently executing
	BusyLeases prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates and registers the metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionos_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sessionos_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sessionos_sessions_active",
			Help: "Session managers currently alive",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sessionos_sessions_started_total",
			Help: "Remote sessions started",
		}),
		KernelRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sessionos_kernel_restarts_total",
			Help: "Kernel restarts performed",
		}),
		KernelChanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sessionos_kernel_changes_total",
			Help: "Kernel changes performed",
		}),

		BusyLeases: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sessionos_busy_leases",
			Help: "Busy leases held by executing kernels",
		}),

		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sessionos_ws_connections",
			Help: "Connected UI clients",
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionos_ws_messages_total",
			Help: "WebSocket messages by direction and type",
		}, []string{"direction", "type"}),

		Uptime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sessionos_uptime_seconds",
			Help: "Process uptime",
		}),
	}
	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
