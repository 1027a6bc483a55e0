// Package config handles configuration loading for carterclient.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; a missing config file
// is fine, the defaults work out of the box.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CARTER_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/carter/config.yaml
//  3. ~/.config/carter/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${XDG_DATA_HOME}/carter/library.db"
//
// Unset variables expand to the empty string.
package config
