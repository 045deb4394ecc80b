// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional YAML file. Environment
// variables use the VOICETASK_ prefix with dots replaced by underscores,
// for example VOICETASK_STORAGE_DATA_DIR.
package config
