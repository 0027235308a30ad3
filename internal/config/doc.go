// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the settings needed by the scheduler, the validation pipeline and
// the HTTP adapter while keeping configuration details out of business logic.
package config
