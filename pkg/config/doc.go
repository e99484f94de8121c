// Package config loads and validates application configuration from
// CAMPUSGATE_* environment variables.
package config
