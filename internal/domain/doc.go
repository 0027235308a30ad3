// Package domain defines the property-assessment entities the validation
// pipeline works on: properties, selection filters, batch results, per-item
// findings and the quality snapshots persisted after each run.
//
// Types here are plain data. They carry no persistence or scheduling logic.
package domain
