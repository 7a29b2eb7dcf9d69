// Package config loads application configuration from environment variables.
//
// All settings use the MERIDIAN_ prefix and have sensible defaults for local
// development, except secrets (JWT signing key, Google client credentials)
// which must be provided explicitly.
package config
