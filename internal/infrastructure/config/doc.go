// Package config loads and validates Lumen Core configuration.
//
// Configuration comes from three layers, each overriding the last:
// hardcoded defaults, a YAML file, and LUMEN_* environment variables.
// Secrets (JWT signing key, broker credentials, InfluxDB token) should
// always be supplied via the environment rather than the file.
package config
