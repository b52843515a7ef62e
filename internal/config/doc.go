// Package config loads, normalizes, and validates the aulagrab configuration.
//
// Settings come from a TOML file (default ~/.config/aulagrab/config.toml)
// with environment overrides for the values that change per run: the course
// home URL, the cohort filter, and the login credentials. Credentials are
// env-only and are never written to disk.
package config
