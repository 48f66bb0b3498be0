// Package logging builds the process-wide slog.Logger: human-readable text on
// the console and, when a file is configured, JSON to a size-rotated log file.
package logging
