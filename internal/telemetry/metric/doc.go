// Package metric provides Prometheus metrics for the accumulator
// service.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Registry, named counters/gauges/histograms, HTTP handler
//   - collector.go: Collector, a pull-based prometheus.Collector for
//     stats that are cheap to compute at scrape time
//
// Metrics cover slot activity (active count, rotations, history queue
// depth), storage fallbacks (store/backup failures), restored
// downtime, and ingress request rate/latency.
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
