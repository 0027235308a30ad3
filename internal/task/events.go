package task

import (
	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/events"
)

// Event is a lifecycle event about a task; Payload is a snapshot taken at
// the transition.
type Event = events.Event[Info]

// Events exposes the engine's event stream.
func (e *Engine) Events() *events.Bus[Info] {
	return e.bus
}

// Subscribe returns a buffered channel of events accepted by filter and a
// function that unsubscribes. Slow readers lose events rather than block
// the engine.
func (e *Engine) Subscribe(buffer int, filter events.Filter[Info]) (<-chan Event, func()) {
	return e.bus.Subscribe(buffer, filter)
}

// SubscribeTask is Subscribe scoped to one task. The channel is closed when
// the task is swept.
func (e *Engine) SubscribeTask(id uuid.UUID, buffer int) (<-chan Event, func()) {
	return e.bus.SubscribeSubject(id.String(), buffer)
}

func (e *Engine) publish(kind events.Kind, info Info) {
	e.bus.Publish(Event{
		Kind:    kind,
		Subject: info.ID.String(),
		Time:    e.now(),
		Payload: info,
	})
}

// registerCallbacks turns the per-task callbacks in opts into handlers on
// the event stream.
func (e *Engine) registerCallbacks(id uuid.UUID, opts Options) {
	if opts.OnProgress == nil && opts.OnComplete == nil && opts.OnFailure == nil {
		return
	}
	onProgress, onComplete, onFailure := opts.OnProgress, opts.OnComplete, opts.OnFailure
	e.bus.HandleSubject(id.String(), func(ev Event) {
		switch ev.Kind {
		case events.KindProgress:
			if onProgress != nil {
				onProgress(ev.Payload)
			}
		case events.KindCompleted:
			if onComplete != nil {
				onComplete(ev.Payload)
			}
		case events.KindFailed:
			if onFailure != nil {
				onFailure(ev.Payload)
			}
		}
	})
}
