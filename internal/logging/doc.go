// Package logging builds the slog loggers used across the daemon and CLI.
//
// It maps config values (format, level, log directory) onto slog handlers,
// provides typed attribute helpers, and standardizes component-scoped loggers
// so every subsystem logs with the same field names.
package logging
