// Package config loads the runtime configuration for a reconciliation run.
//
// Configuration is layered: built-in defaults, an optional YAML file,
// CONFORM_* environment variables, then CLI flags applied by the caller.
// Validate is called after all layers have been merged.
package config
