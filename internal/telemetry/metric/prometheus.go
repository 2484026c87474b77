// Package metric provides Prometheus metrics for the accumulator
// service.
//
// It exposes counters and gauges for slot activity, storage backend
// health, and ingress traffic, served from /metrics in Prometheus
// exposition format.
package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slotcache"

// Registry holds every metric the accumulator exposes.
type Registry struct {
	registry *prometheus.Registry

	SlotsActive    prometheus.Gauge
	SlotsRotated   prometheus.Counter
	HistoryQueued  prometheus.Gauge
	AddsTotal      *prometheus.CounterVec
	StoreFailures  prometheus.Counter
	BackupFailures prometheus.Counter
	DowntimeTotal  *prometheus.CounterVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry builds a Registry with its own prometheus.Registry,
// pre-registered with the Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		registry: reg,
		SlotsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots_active",
			Help:      "Number of currently open active slots across all sites.",
		}),
		SlotsRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_rotated_total",
			Help:      "Total number of active-slot rotations (natural or forced).",
		}),
		HistoryQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_queue_length",
			Help:      "Total number of closed slots awaiting a durable store.",
		}),
		AddsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adds_total",
			Help:      "Total number of accepted add() calls, by site.",
		}, []string{"site"}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Total number of slot store operations that fell back to local disk.",
		}),
		BackupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_failures_total",
			Help:      "Total number of snapshot backup writes that fell back to local disk.",
		}),
		DowntimeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restored_downtime_seconds_total",
			Help:      "Total downtime charged to restored slots, by site.",
		}, []string{"site"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of ingress requests, by protocol, method and status.",
		}, []string{"protocol", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Ingress request latency in seconds, by protocol and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"protocol", "method"}),
	}

	reg.MustRegister(
		r.SlotsActive,
		r.SlotsRotated,
		r.HistoryQueued,
		r.AddsTotal,
		r.StoreFailures,
		r.BackupFailures,
		r.DowntimeTotal,
		r.RequestsTotal,
		r.RequestDuration,
	)

	return r
}

// Handler returns an HTTP handler serving this registry's metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// MustRegister adds externally-constructed collectors -- a
// badgerstore.Store's LSM/value-log gauges, a pull-based
// metric.Collector -- to this registry. Panics on a duplicate or
// inconsistent registration, the same contract as
// prometheus.Registry.MustRegister.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// IncAdds records an accepted add() call for a site.
func (r *Registry) IncAdds(site string) {
	r.AddsTotal.WithLabelValues(site).Inc()
}

// AddDowntime records downtime charged to a restored slot for a site.
func (r *Registry) AddDowntime(site string, seconds float64) {
	if seconds <= 0 {
		return
	}
	r.DowntimeTotal.WithLabelValues(site).Add(seconds)
}

// RecordRequest increments the request counter for a protocol/method/status triple.
func (r *Registry) RecordRequest(protocol, method, status string) {
	r.RequestsTotal.WithLabelValues(protocol, method, status).Inc()
}

// ObserveRequestDuration records a request's duration in seconds.
func (r *Registry) ObserveRequestDuration(protocol, method string, seconds float64) {
	r.RequestDuration.WithLabelValues(protocol, method).Observe(seconds)
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide default Registry, creating it on
// first use.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns an HTTP handler serving the global Registry's metrics.
func Handler() http.Handler {
	return Global().Handler()
}
