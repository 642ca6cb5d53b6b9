// Package config loads, normalizes, and validates mediascribe's TOML
// configuration, and resolves external-service credentials from the
// environment.
package config
