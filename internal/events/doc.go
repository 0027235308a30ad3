// Package events provides a typed, in-memory event stream.
//
// A Bus carries Event values of a single payload type. Consumers either
// subscribe with a buffered channel (non-blocking delivery, slow readers drop
// events) or register a synchronous handler that runs in publish order. Both
// forms take an optional Filter, so per-subject listeners are just filtered
// subscriptions on the one stream rather than separate bookkeeping.
package events
