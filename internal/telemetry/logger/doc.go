// Package logger provides structured logging for trainmesh.
//
//   - logger.go: slog handler setup, levels, default logger
//   - context.go: context propagation of worker and session ids
//   - redact.go: masking of memory handle values
package logger
