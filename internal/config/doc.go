// Package config loads, normalizes, and validates the TOML configuration
// shared by the fhirhose daemon and CLI.
//
// Load applies defaults first, then file contents, then environment
// fallbacks, so a missing config file still yields a runnable configuration.
// All path fields are tilde-expanded and absolute after Load returns.
package config
