package task

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task.
type Status string

// Possible task status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Priority decides where a submission is inserted in the pending queue.
type Priority string

// Priority classes, highest first.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps a string to a Priority. Empty input yields PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case "":
		return PriorityMedium, nil
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	}
	return "", ErrInvalidPriority
}

// Common errors returned by the Engine
var (
	// ErrInvalidOptions is returned by Submit when the body is nil or the
	// options fail validation.
	ErrInvalidOptions = errors.New("invalid task options")

	// ErrInvalidPriority is returned when a priority string is not recognised.
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrQueueFull is returned by Submit when the pending queue is at capacity.
	ErrQueueFull = errors.New("task queue is full")

	// ErrEngineStopped is returned by Submit after Stop.
	ErrEngineStopped = errors.New("task engine is stopped")

	// ErrTaskPanicked is recorded as the failure of a body that panicked.
	ErrTaskPanicked = errors.New("task panicked")
)

// Info is a point-in-time snapshot of a task. Values handed out by the
// engine are copies; mutating them has no effect on the engine.
type Info struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	Status            Status            `json:"status"`
	Priority          Priority          `json:"priority"`
	Progress          int               `json:"progress"`
	ProgressMessage   string            `json:"progress_message,omitempty"`
	Result            any               `json:"result,omitempty"`
	Error             string            `json:"error,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	EstimatedDuration time.Duration     `json:"estimated_duration,omitempty"`
	SubmittedBy       string            `json:"submitted_by,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

func (i Info) clone() Info {
	out := i
	if i.StartedAt != nil {
		t := *i.StartedAt
		out.StartedAt = &t
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		out.CompletedAt = &t
	}
	if i.Metadata != nil {
		out.Metadata = maps.Clone(i.Metadata)
	}
	out.Result = cloneResult(i.Result)
	return out
}

// ResultCloner is implemented by results that hold slices, maps or
// pointers. The engine stores a copy of such a result and hands out further
// copies, so callers never share state with the registry.
type ResultCloner interface {
	CloneResult() any
}

func cloneResult(v any) any {
	if c, ok := v.(ResultCloner); ok {
		return c.CloneResult()
	}
	return v
}

// Options describe a submission.
type Options struct {
	Name              string            `validate:"required,max=200"`
	Description       string            `validate:"max=2000"`
	Priority          Priority          `validate:"omitempty,oneof=high medium low"`
	EstimatedDuration time.Duration     `validate:"gte=0"`
	SubmittedBy       string            `validate:"max=200"`
	Metadata          map[string]string `validate:"omitempty,max=64"`

	// Callbacks run synchronously on the goroutine publishing the event.
	// They must not block or report progress.
	OnProgress func(Info)
	OnComplete func(Info)
	OnFailure  func(Info)
}

// Progress is the capability handed to a running body.
type Progress interface {
	// Report records progress and a message. Values below the current
	// progress keep the current value; 100 is only reached on completion.
	Report(progress int, message string)

	// Info returns a snapshot of the running task.
	Info() Info
}

// Func is a unit of background work. The context is cancelled when the
// engine stops.
type Func func(ctx context.Context, p Progress) (any, error)
