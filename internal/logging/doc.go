// Package logging assembles structured slog loggers and formatting helpers used
// across fieldsnap.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so upload code can tag log lines with queue
// item and group identifiers. Console output is coloured only when it is bound
// to a terminal. NewNop provides a logger for tests and wiring code that cannot
// fail.
package logging
