package task

import (
	"slices"

	"github.com/google/uuid"
)

type queueEntry struct {
	id       uuid.UUID
	priority Priority
}

// queue is the ordered list of pending task ids. The insertion policy keeps
// entries grouped high, medium, low with FIFO order inside each class, so
// the head is always the oldest entry of the best class present.
// Not safe for concurrent use; the engine guards it with its mutex.
type queue struct {
	entries []queueEntry
}

func newQueue() *queue {
	return &queue{}
}

// push inserts id behind every queued entry of the same or a better class.
func (q *queue) push(id uuid.UUID, p Priority) {
	e := queueEntry{id: id, priority: p}
	if p == PriorityLow {
		q.entries = append(q.entries, e)
		return
	}

	pos := 0
	for i := len(q.entries) - 1; i >= 0; i-- {
		if !outranks(p, q.entries[i].priority) {
			pos = i + 1
			break
		}
	}
	q.entries = slices.Insert(q.entries, pos, e)
}

// outranks reports whether a strictly beats b.
func outranks(a, b Priority) bool {
	return rank(a) < rank(b)
}

func rank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

func (q *queue) pop() (uuid.UUID, bool) {
	if len(q.entries) == 0 {
		return uuid.Nil, false
	}
	head := q.entries[0]
	q.entries[0] = queueEntry{}
	q.entries = q.entries[1:]
	return head.id, true
}

func (q *queue) remove(id uuid.UUID) bool {
	i := slices.IndexFunc(q.entries, func(e queueEntry) bool { return e.id == id })
	if i < 0 {
		return false
	}
	q.entries = slices.Delete(q.entries, i, i+1)
	return true
}

func (q *queue) len() int {
	return len(q.entries)
}

func (q *queue) ids() []uuid.UUID {
	out := make([]uuid.UUID, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.id
	}
	return out
}
