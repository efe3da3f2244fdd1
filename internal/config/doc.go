// Package config holds the crawler's configuration: CLI-populated
// options with documented defaults, the YAML config file with its
// manual thread overrides, and credential resolution from environment
// or token file.
package config
