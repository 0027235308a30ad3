package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/events"
	"github.com/robfig/cron/v3"
)

// Config holds configuration for the task engine
type Config struct {
	// MaxConcurrent bounds how many tasks may be running at once
	MaxConcurrent int `validate:"required,gt=0"`

	// QueueSize caps the number of pending tasks. Zero means unbounded.
	QueueSize int `validate:"gte=0"`

	// RetentionWindow is how long terminal tasks stay queryable
	RetentionWindow time.Duration `validate:"gt=0"`

	// SweepSchedule is a cron expression for the retention sweeper.
	// Empty disables scheduled sweeps; Sweep can still be called directly.
	SweepSchedule string
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:   4,
		QueueSize:       0,
		RetentionWindow: time.Hour,
		SweepSchedule:   "@every 1m",
	}
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine is an in-memory, priority-ordered task scheduler with bounded
// concurrency. All scheduling decisions are made by a single dispatcher
// goroutine; task bodies run on their own goroutines.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	bus      *events.Bus[Info]
	validate *validator.Validate
	now      func() time.Time

	// publishMu orders the snapshot and publish of progress and terminal
	// events, so listeners never see a task's progress go backwards.
	// Acquired before mu.
	publishMu sync.Mutex

	mu      sync.Mutex
	tasks   *registry
	queue   *queue
	active  int
	started bool
	stopped bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	cron   *cron.Cron
}

// New creates an Engine. Nothing is dispatched until Start is called.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		logger:   logger.With("component", "task_engine"),
		validate: v,
		now:      time.Now,
		tasks:    newRegistry(),
		queue:    newQueue(),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	e.bus = events.NewBus[Info](logger)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start launches the dispatcher and, when configured, the retention sweeper.
// Tasks submitted before Start stay pending until now.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrEngineStopped
	}
	if e.started {
		return nil
	}

	if e.cfg.SweepSchedule != "" {
		c, err := e.newSweepCron()
		if err != nil {
			return err
		}
		e.cron = c
		e.cron.Start()
	}

	e.started = true
	e.wg.Add(1)
	go e.dispatchLoop()
	e.signal()

	e.logger.Info("task engine started",
		"max_concurrent", e.cfg.MaxConcurrent,
		"queue_size", e.cfg.QueueSize,
		"retention_window", e.cfg.RetentionWindow,
		"pending", e.queue.len())
	return nil
}

// Stop rejects new submissions, cancels the context handed to running
// bodies and waits for the dispatcher and every running body to return, or
// for ctx to expire. Pending tasks are left pending.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	pending := e.queue.len()
	e.mu.Unlock()

	e.cancel()

	var cronDone context.Context
	if e.cron != nil {
		cronDone = e.cron.Stop()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		if cronDone != nil {
			<-cronDone.Done()
		}
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("task engine stopped", "pending_abandoned", pending)
		return nil
	case <-ctx.Done():
		e.logger.Warn("task engine stop timed out", "error", ctx.Err())
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}

// Submit registers fn as a pending task and returns its id. It never runs
// the body synchronously.
func (e *Engine) Submit(fn Func, opts Options) (uuid.UUID, error) {
	if fn == nil {
		return uuid.Nil, fmt.Errorf("%w: task body is nil", ErrInvalidOptions)
	}
	if err := e.validate.Struct(opts); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if opts.Priority == "" {
		opts.Priority = PriorityMedium
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return uuid.Nil, ErrEngineStopped
	}
	if e.cfg.QueueSize > 0 && e.queue.len() >= e.cfg.QueueSize {
		e.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%w: capacity %d reached", ErrQueueFull, e.cfg.QueueSize)
	}

	rec := &record{
		fn: fn,
		info: Info{
			ID:                uuid.New(),
			Name:              opts.Name,
			Description:       opts.Description,
			Status:            StatusPending,
			Priority:          opts.Priority,
			CreatedAt:         e.now(),
			EstimatedDuration: opts.EstimatedDuration,
			SubmittedBy:       opts.SubmittedBy,
		},
	}
	if opts.Metadata != nil {
		rec.info.Metadata = make(map[string]string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			rec.info.Metadata[k] = v
		}
	}
	e.tasks.add(rec)
	e.queue.push(rec.info.ID, rec.info.Priority)
	// Registered before unlocking so no event for this task can be missed.
	e.registerCallbacks(rec.info.ID, opts)
	queued := e.queue.len()
	e.mu.Unlock()

	e.logger.Debug("task submitted",
		"task_id", rec.info.ID,
		"task_name", rec.info.Name,
		"priority", rec.info.Priority,
		"queue_len", queued)

	e.signal()
	return rec.info.ID, nil
}

// Status returns a snapshot of the task.
func (e *Engine) Status(id uuid.UUID) (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.tasks.get(id)
	if !ok {
		return Info{}, false
	}
	return rec.info.clone(), true
}

// Result returns the value produced by a completed task.
func (e *Engine) Result(id uuid.UUID) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.tasks.get(id)
	if !ok || rec.info.Status != StatusCompleted {
		return nil, false
	}
	return cloneResult(rec.result), true
}

// ResultAs returns the result of a completed task asserted to T.
func ResultAs[T any](e *Engine, id uuid.UUID) (T, bool) {
	var zero T
	v, ok := e.Result(id)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// List returns snapshots of tasks accepted by pred (nil accepts all),
// ordered by creation time.
func (e *Engine) List(pred func(Info) bool) []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.list(pred)
}

// Pending returns the ids of queued tasks in dispatch order.
func (e *Engine) Pending() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.ids()
}

// Running returns the number of tasks currently running.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Cancel cancels a pending task. It returns false if the task is unknown or
// no longer pending; running tasks are never interrupted.
func (e *Engine) Cancel(id uuid.UUID) bool {
	e.mu.Lock()
	rec, ok := e.tasks.get(id)
	if !ok || rec.info.Status != StatusPending {
		e.mu.Unlock()
		return false
	}
	e.queue.remove(id)
	now := e.now()
	rec.info.Status = StatusCancelled
	rec.info.CompletedAt = &now
	snapshot := rec.info.clone()
	e.mu.Unlock()

	e.logger.Info("task cancelled", "task_id", id, "task_name", snapshot.Name)
	e.publish(events.KindCancelled, snapshot)
	return true
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) dispatchLoop() {
	defer e.wg.Done()

	e.logger.Debug("dispatcher started")
	for {
		select {
		case <-e.ctx.Done():
			e.logger.Debug("dispatcher stopping")
			return
		case <-e.wake:
			e.dispatch()
		}
	}
}

// dispatch promotes queued tasks to running while capacity allows.
func (e *Engine) dispatch() {
	e.mu.Lock()
	var launched []*record
	var started []Info
	for !e.stopped && e.active < e.cfg.MaxConcurrent {
		id, ok := e.queue.pop()
		if !ok {
			break
		}
		rec, ok := e.tasks.get(id)
		if !ok || rec.info.Status != StatusPending {
			continue
		}

		now := e.now()
		rec.info.Status = StatusRunning
		rec.info.StartedAt = &now
		e.active++
		e.wg.Add(1)
		launched = append(launched, rec)
		started = append(started, rec.info.clone())
	}
	e.mu.Unlock()

	for i, rec := range launched {
		e.logger.Info("task started",
			"task_id", started[i].ID,
			"task_name", started[i].Name,
			"priority", started[i].Priority)
		e.publish(events.KindStarted, started[i])
		go e.run(rec)
	}
}
