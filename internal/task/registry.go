package task

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
)

// record is the engine's mutable view of a task.
type record struct {
	info   Info
	fn     Func
	result any
	seq    uint64
}

// registry indexes every known task by id. Guarded by the engine mutex.
type registry struct {
	records map[uuid.UUID]*record
	seq     uint64
}

func newRegistry() *registry {
	return &registry{records: make(map[uuid.UUID]*record)}
}

func (r *registry) add(rec *record) {
	r.seq++
	rec.seq = r.seq
	r.records[rec.info.ID] = rec
}

func (r *registry) get(id uuid.UUID) (*record, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// list returns snapshots accepted by pred, oldest first.
func (r *registry) list(pred func(Info) bool) []Info {
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		if pred == nil || pred(rec.info) {
			recs = append(recs, rec)
		}
	}
	slices.SortFunc(recs, func(a, b *record) int {
		if c := a.info.CreatedAt.Compare(b.info.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Info, len(recs))
	for i, rec := range recs {
		out[i] = rec.info.clone()
	}
	return out
}

// expire deletes terminal records completed more than window before now.
func (r *registry) expire(now time.Time, window time.Duration) []uuid.UUID {
	var removed []uuid.UUID
	for id, rec := range r.records {
		if !rec.info.Status.Terminal() || rec.info.CompletedAt == nil {
			continue
		}
		if now.Sub(*rec.info.CompletedAt) > window {
			delete(r.records, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (r *registry) len() int {
	return len(r.records)
}
