// Package config loads, normalizes, and validates diareval configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DIAREVAL_HYPOTHESES_DIR. Command-line flags are applied on top of the
// loaded Config by the CLI.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
