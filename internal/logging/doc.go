// Package logging assembles the structured slog loggers used across muteguard.
//
// It owns the console and JSON handlers, routes a JSON copy of every record
// to the log file under paths.log_dir, applies per-component level overrides,
// and exposes context helpers that tag lines with content identities and
// correlation IDs. NewNop serves tests and wiring code that cannot fail.
package logging
