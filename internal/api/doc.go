// Package api exposes the task engine and the batch validation pipeline
// over HTTP. Handlers translate requests into engine and pipeline calls,
// map internal errors to status codes and never leak raw error text to
// clients.
package api
