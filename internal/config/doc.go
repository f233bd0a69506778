// Package config loads, normalizes, and validates heifconv configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HEIFCONV_CODEC. The Config type centralizes every knob the CLI and
// conversion core need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
