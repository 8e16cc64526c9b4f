// Package config loads, normalizes, and validates vidscribe configuration data.
//
// Settings are layered: repository defaults, then an optional TOML file, then
// environment fallbacks such as VIDSCRIBE_S3_ACCESS_KEY and NTFY_TOPIC, then
// explicit Overrides supplied by the CLI. The resulting Config is built once
// at startup and treated as read-only for the rest of the run.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical extensions, and clear validation errors.
package config
