// Package notifications delivers daemon events to ntfy.
//
// The topic comes from [daemon] ntfy_topic in config.toml; when it is empty
// NewService returns a no-op. Maintenance passes that remove nothing are not
// delivered.
package notifications
