// Package main provides the entry point for slotcache-server.
//
// The server loads its configuration (site list, backup cadence,
// interval granularity, type registry, debug flags), opens the
// embedded Badger store, restores every site's active accumulator
// from its last snapshot, and runs the control loop:
//
//   - a periodic flush on the configured backup interval
//   - SIGHUP reconfiguration of the type registry
//   - an optional SIGUSR1-triggered forced rotation, gated by
//     debug.force_cache_rotation
//   - SIGTERM/SIGINT graceful termination, followed by one final flush
//
// Usage:
//
//	slotcache-server --config /path/to/config.yaml
//	slotcache-server --config /path/to/config.yaml --metrics-addr :9090
package main
