// Package analysis persists filtered dialogue per content and filter level.
//
// Each record points at a filtered artifact on local disk. A record is only
// trusted while that file exists: rows copied from another device without
// their artifact are reported as absent but left in place, so a later sync
// that brings the file along makes them usable again.
//
// The store is SQLite in WAL mode with a single connection. Artifacts are
// written with a temp-file rename before the row is upserted.
package analysis
