// Package logging assembles structured slog loggers and formatting helpers used
// across crewbe.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with session IDs, phases, and correlation IDs. Each recording session
// can additionally tee its records into a JSON log file kept beside the spooled
// recording. The package also provides a no-op logger for tests and wiring
// code that cannot fail.
package logging
