// Package config loads, normalizes, and validates photosync configuration
// from TOML files with sane defaults for every section.
package config
