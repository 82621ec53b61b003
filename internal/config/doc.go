// Package config loads, normalizes, and validates crewbe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AWS_REGION and CREWBE_API_TOKEN. The Config type centralizes every knob the
// recorder CLI and the API daemon need, so capture, upload, and analysis
// settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
