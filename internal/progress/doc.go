// Package progress provides opt-in progress reporting for the CLI
// tool's export/restore operations.
//
//   - progress.go: global enable/output state and the Counter type
//
// Reporting is off by default; a --progress flag calls Enable and
// SetOutput before the operation starts, so neither the server nor
// scripted CLI invocations get unsolicited terminal output.
package progress
