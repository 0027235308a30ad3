package task

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/events"
)

// run executes one body for a task that the dispatcher moved to running.
func (e *Engine) run(rec *record) {
	defer e.wg.Done()

	id := rec.info.ID
	logger := e.logger.With("task_id", id)
	p := &reporter{engine: e, id: id}

	result, err := invoke(e.ctx, rec.fn, p)
	if err != nil {
		logger.Error("task execution failed", "error", err)
	} else {
		logger.Info("task completed successfully")
	}
	e.finish(id, result, err)
}

// invoke calls fn, converting a panic into ErrTaskPanicked.
func invoke(ctx context.Context, fn Func, p Progress) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v\n%s", ErrTaskPanicked, r, debug.Stack())
		}
	}()
	return fn(ctx, p)
}

// finish records the terminal transition, frees the slot and wakes the
// dispatcher.
func (e *Engine) finish(id uuid.UUID, result any, err error) {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	rec, ok := e.tasks.get(id)
	if !ok {
		e.active--
		e.mu.Unlock()
		e.signal()
		return
	}

	now := e.now()
	rec.info.CompletedAt = &now
	kind := events.KindCompleted
	if err != nil {
		rec.info.Status = StatusFailed
		rec.info.Error = err.Error()
		kind = events.KindFailed
	} else {
		rec.info.Status = StatusCompleted
		rec.info.Progress = 100
		stored := cloneResult(result)
		rec.info.Result = stored
		rec.result = stored
	}
	e.active--
	snapshot := rec.info.clone()
	e.mu.Unlock()

	e.signal()
	e.publish(kind, snapshot)
}

// reporter is the Progress handed to a running body.
type reporter struct {
	engine *Engine
	id     uuid.UUID
}

func (r *reporter) Report(progress int, message string) {
	e := r.engine
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	rec, ok := e.tasks.get(r.id)
	if !ok || rec.info.Status != StatusRunning {
		e.mu.Unlock()
		return
	}
	// Values outside (current, 100) are held at the current value; only the
	// completed transition sets 100.
	if progress > rec.info.Progress && progress < 100 {
		rec.info.Progress = progress
	}
	rec.info.ProgressMessage = message
	snapshot := rec.info.clone()
	e.mu.Unlock()

	e.publish(events.KindProgress, snapshot)
}

func (r *reporter) Info() Info {
	info, _ := r.engine.Status(r.id)
	return info
}
