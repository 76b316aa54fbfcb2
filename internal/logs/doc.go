// Package logs reads the daemon's JSON log file for the CLI.
//
// Tail returns the last N lines or everything after a byte offset, and can
// poll for new lines in follow mode. ParseEntry decodes one JSON record so
// callers can filter by item, group, or level and render a console line.
package logs
