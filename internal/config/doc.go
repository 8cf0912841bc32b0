// Package config loads and validates service configuration.
//
// Configuration is resolved from three layers, highest precedence first:
// environment variables (RAGD_ prefix), an optional YAML file, and built-in
// defaults. The resulting Config is validated once and treated as immutable
// for the lifetime of the process.
package config
