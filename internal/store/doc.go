// Package store defines the persistence contracts used by the assessment
// engine: where batch validations read properties from and where quality
// snapshots are recorded. Implementations live under internal/platform.
package store
