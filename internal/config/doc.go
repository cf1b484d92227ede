// Package config loads, validates, and materializes bookforge configuration
// from TOML files. Path values support ~ expansion and credentials fall back
// to environment variables when absent from the file.
package config
