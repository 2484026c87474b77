// Package httpserver provides the ops-facing HTTP listener the
// accumulator server runs alongside its control loop: a thin wrapper
// over stdlib net/http exposing /metrics (Prometheus) and /healthz,
// with optional TLS and graceful shutdown on context cancellation.
package httpserver
