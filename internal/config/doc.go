// Package config loads, normalizes, and validates muteguard configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as OPENSUBTITLES_API_KEY. Validation covers the
// ranking thresholds, the cleanup cron schedule, and the filter level names so
// mistakes surface before any network or database work starts.
package config
