package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultBuffer = 16

// Bus is an in-memory fanout stream of Event[T].
//
// Publish never blocks on channel subscribers: a full channel drops the event
// and increments Dropped. Handlers run synchronously inside Publish, so they
// observe events for a given subject in the order the publisher emitted them.
// Handlers must not call Publish on the same bus.
type Bus[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscription[T]
	seq     atomic.Uint64
	dropped atomic.Uint64
	logger  *slog.Logger
}

type subscription[T any] struct {
	filter  Filter[T]
	ch      chan Event[T]
	handler func(Event[T])
	subject string
	closed  bool // guarded by Bus.mu
}

// NewBus creates an empty bus.
func NewBus[T any](logger *slog.Logger) *Bus[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus[T]{
		subs:   make(map[uint64]*subscription[T]),
		logger: logger.With("component", "event_bus"),
	}
}

// Publish delivers e to every matching subscriber.
func (b *Bus[T]) Publish(e Event[T]) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	// Snapshot subscribers so handlers may subscribe/unsubscribe without deadlocking.
	b.mu.RLock()
	subs := make([]*subscription[T], 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter(e) {
			continue
		}
		if s.handler != nil {
			b.invoke(s, e)
			continue
		}
		b.send(s, e)
	}
}

func (b *Bus[T]) invoke(s *subscription[T], e Event[T]) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_kind", e.Kind,
				"subject", e.Subject,
				"panic", r)
		}
	}()
	s.handler(e)
}

// send holds the read lock across the non-blocking send so an unsubscribe
// can't close the channel underneath it.
func (b *Bus[T]) send(s *subscription[T], e Event[T]) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		b.dropped.Add(1)
		b.logger.Debug("dropping event for slow subscriber",
			"event_kind", e.Kind,
			"subject", e.Subject)
	}
}

// Subscribe registers a buffered channel receiving events accepted by filter.
// The returned function unsubscribes and closes the channel; it is idempotent.
func (b *Bus[T]) Subscribe(buffer int, filter Filter[T]) (<-chan Event[T], func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &subscription[T]{filter: filter, ch: make(chan Event[T], buffer)}
	return s.ch, b.add(s)
}

// SubscribeSubject is Subscribe scoped to one subject. The channel is closed by
// CloseSubject as well as by the returned function.
func (b *Bus[T]) SubscribeSubject(subject string, buffer int) (<-chan Event[T], func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &subscription[T]{
		filter:  ForSubject[T](subject),
		ch:      make(chan Event[T], buffer),
		subject: subject,
	}
	return s.ch, b.add(s)
}

// Handle registers fn to run synchronously for every event accepted by filter.
func (b *Bus[T]) Handle(filter Filter[T], fn func(Event[T])) func() {
	return b.add(&subscription[T]{filter: filter, handler: fn})
}

// HandleSubject registers fn for events about one subject. Such handlers are
// also removed by CloseSubject.
func (b *Bus[T]) HandleSubject(subject string, fn func(Event[T])) func() {
	return b.add(&subscription[T]{filter: ForSubject[T](subject), handler: fn, subject: subject})
}

// CloseSubject drops every subscription registered with HandleSubject or
// SubscribeSubject for subject, closing subject channels.
func (b *Bus[T]) CloseSubject(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, s := range b.subs {
		if s.subject == subject {
			delete(b.subs, id)
			b.closeLocked(s)
			removed++
		}
	}
	return removed
}

// Len returns the number of live subscriptions.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many channel deliveries were dropped.
func (b *Bus[T]) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus[T]) add(s *subscription[T]) func() {
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("registered event subscriber", "subscriber_count", count)

	return func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
		}
		b.closeLocked(s)
		b.mu.Unlock()
	}
}

func (b *Bus[T]) closeLocked(s *subscription[T]) {
	if s.closed {
		return
	}
	s.closed = true
	if s.ch != nil {
		close(s.ch)
	}
}
