// Package logger provides structured logging for the accumulator
// service, built on log/slog:
//
//   - logger.go: Logger interface, slogLogger, level configuration
//   - redact.go: Sensitive data redaction
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering, adjustable at runtime
//   - Automatic sensitive data masking
package logger
