// Package logging assembles structured slog loggers and formatting helpers used
// across vidscribe.
//
// It owns the console and JSON handlers, fans records out to the terminal and
// to a size-rotated log file, and exposes context-aware helpers so pipeline
// code can tag log lines with the run identifier, the item being processed,
// and the current stage. The package also provides a no-op logger for tests
// and wiring code that cannot fail.
package logging
