// Package config loads matchd configuration from YAML with ${VAR} expansion
// and MATCHFEED_* environment overrides.
package config
