// Package config handles configuration loading and management for extbridge.
//
// It provides functionality for:
//   - Loading configuration from .extbridge.json or .extbridge.yaml files
//   - Default configuration values
//   - EXTBRIDGE_* environment overrides
//   - Watching a config file for changes
package config
