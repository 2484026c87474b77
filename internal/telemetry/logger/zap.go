// This file is reserved for a zap-backed Logger implementation.
//
// Current implementation lives in logger.go (based on log/slog).
package logger
