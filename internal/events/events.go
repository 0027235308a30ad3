package events

import "time"

// Kind tags the lifecycle transition an event reports.
type Kind string

// Lifecycle event kinds.
const (
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
	KindCancelled Kind = "cancelled"
)

// Terminal reports whether k ends a lifecycle.
func (k Kind) Terminal() bool {
	return k == KindCompleted || k == KindFailed || k == KindCancelled
}

// Event is one entry on the stream. Subject identifies the entity the event
// is about (for the task engine, the task id).
type Event[T any] struct {
	Kind    Kind
	Subject string
	Time    time.Time
	Payload T
}

// Filter selects events for a subscription. A nil Filter accepts everything.
type Filter[T any] func(Event[T]) bool

// ForSubject returns a filter matching a single subject.
func ForSubject[T any](subject string) Filter[T] {
	return func(e Event[T]) bool { return e.Subject == subject }
}

// ForKinds returns a filter matching any of the given kinds.
func ForKinds[T any](kinds ...Kind) Filter[T] {
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(e Event[T]) bool {
		_, ok := set[e.Kind]
		return ok
	}
}

// And combines filters; nil filters are ignored.
func And[T any](filters ...Filter[T]) Filter[T] {
	return func(e Event[T]) bool {
		for _, f := range filters {
			if f != nil && !f(e) {
				return false
			}
		}
		return true
	}
}
