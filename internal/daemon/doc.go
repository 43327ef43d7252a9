// Package daemon runs muteguard's background maintenance.
//
// A single instance is enforced with a flock lock. While running, a cron
// schedule removes expired analysis records, prunes stale raw subtitle cache
// entries and old log files, and an HTTP listener serves Prometheus metrics
// and a health probe. Each pass that removed something, or failed, is
// published to the configured ntfy topic.
//
// Analysis itself happens in the CLI; the daemon only keeps storage bounded.
package daemon
