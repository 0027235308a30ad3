// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and carries request- or task-scoped loggers through
// context.Context so deep call sites can log with the right correlation attributes.
package logger
