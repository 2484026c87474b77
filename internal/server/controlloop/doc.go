// Package controlloop provides the process's main event loop.
//
//   - controlloop.go: Loop, its hooks, and Run's signal/timer select
//
// Run multiplexes a flush timer with SIGTERM/SIGINT (terminate),
// SIGHUP (reload), SIGUSR1 (debug-gated forced rotation), and SIGCHLD
// (ignored, reaped elsewhere); any other signal is logged and
// ignored.
package controlloop
