package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/platform/logger"
	"github.com/phrazzld/assessment-engine/internal/task"
)

// ErrInvalidRequest is returned by SubmitBatchValidation when the request is
// rejected before a task is created.
var ErrInvalidRequest = errors.New("invalid batch validation request")

// PropertySource supplies the items a batch validates.
type PropertySource interface {
	Fetch(ctx context.Context, filter domain.ValidationFilter) ([]domain.Property, error)
}

// SnapshotSink records one quality snapshot per completed batch.
type SnapshotSink interface {
	Append(ctx context.Context, snapshot domain.QualitySnapshot) error
}

// Notifier is told once about a finished batch when the submitter asked for it.
type Notifier interface {
	Notify(ctx context.Context, result domain.BatchValidationResult, info task.Info) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, result domain.BatchValidationResult, info task.Info) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, result domain.BatchValidationResult, info task.Info) error {
	return f(ctx, result, info)
}

// LogNotifier returns a Notifier that writes a summary line to l.
func LogNotifier(l *slog.Logger) Notifier {
	return NotifierFunc(func(ctx context.Context, r domain.BatchValidationResult, info task.Info) error {
		l.InfoContext(ctx, "batch validation finished",
			"task_id", info.ID,
			"batch_id", r.BatchID,
			"validation_type", r.ValidationType,
			"submitted_by", info.SubmittedBy,
			"total_items", r.TotalItems,
			"valid_items", r.ValidItems,
			"invalid_items", r.InvalidItems,
			"warning_count", r.WarningCount,
			"execution_error", r.HasExecutionError())
		return nil
	})
}

// Submitter is the part of the task engine the pipeline needs.
type Submitter interface {
	Submit(fn task.Func, opts task.Options) (uuid.UUID, error)
}

// OrchestrationFailurePolicy decides what happens when fetching, chunk
// processing or persistence fails during a run.
type OrchestrationFailurePolicy int

const (
	// FoldIntoResult records the failure as a single EXECUTION_ERROR entry
	// and completes the task with the partial result.
	FoldIntoResult OrchestrationFailurePolicy = iota

	// PropagateFailure fails the task with the orchestration error.
	PropagateFailure
)

// String returns the policy name.
func (p OrchestrationFailurePolicy) String() string {
	switch p {
	case FoldIntoResult:
		return "fold_into_result"
	case PropagateFailure:
		return "propagate_failure"
	default:
		return fmt.Sprintf("OrchestrationFailurePolicy(%d)", int(p))
	}
}

// PipelineConfig holds configuration for the batch validation pipeline
type PipelineConfig struct {
	// ChunkSize is the number of items validated between progress reports
	ChunkSize int `validate:"gt=0"`

	// Policy decides how orchestration failures surface
	Policy OrchestrationFailurePolicy `validate:"gte=0,lte=1"`
}

// DefaultPipelineConfig returns a PipelineConfig with reasonable defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ChunkSize: 100,
		Policy:    FoldIntoResult,
	}
}

// BatchRequest describes one batch validation submission.
type BatchRequest struct {
	ValidationType domain.ValidationType `validate:"required"`
	Filter         domain.ValidationFilter
	Params         Params
	Priority       task.Priority `validate:"omitempty,oneof=high medium low"`
	SubmittedBy    string        `validate:"max=200"`
	Notify         bool
}

// Pipeline runs batch validations as tasks on the engine.
type Pipeline struct {
	engine   Submitter
	rules    *RuleSets
	source   PropertySource
	sink     SnapshotSink
	notifier Notifier
	config   PipelineConfig
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewPipeline creates a Pipeline. A nil notifier logs notifications.
func NewPipeline(
	engine Submitter,
	rules *RuleSets,
	source PropertySource,
	sink SnapshotSink,
	notifier Notifier,
	config PipelineConfig,
	l *slog.Logger,
) (*Pipeline, error) {
	if engine == nil || rules == nil || source == nil || sink == nil {
		return nil, errors.New("pipeline requires an engine, rule sets, a property source and a snapshot sink")
	}
	v := validator.New()
	if err := v.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}
	if l == nil {
		l = slog.Default()
	}
	l = l.With("component", "batch_validation")
	if notifier == nil {
		notifier = LogNotifier(l)
	}
	return &Pipeline{
		engine:   engine,
		rules:    rules,
		source:   source,
		sink:     sink,
		notifier: notifier,
		config:   config,
		logger:   l,
		validate: v,
		now:      time.Now,
	}, nil
}

// SubmitBatchValidation validates req and submits the batch as a task. It
// returns the task id without waiting for the run.
func (p *Pipeline) SubmitBatchValidation(ctx context.Context, req BatchRequest) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	if err := p.validate.Struct(req); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !req.ValidationType.IsValid() {
		return uuid.Nil, fmt.Errorf("%w: %w: %q", ErrInvalidRequest, domain.ErrInvalidValidationType, req.ValidationType)
	}
	checker, err := p.rules.Checker(req.ValidationType, req.Params)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	batchID := uuid.New()
	id, err := p.engine.Submit(p.job(batchID, req, checker), task.Options{
		Name:        fmt.Sprintf("batch validation %s", req.ValidationType),
		Description: "validate property records against assessment rules",
		Priority:    req.Priority,
		SubmittedBy: req.SubmittedBy,
		Metadata: map[string]string{
			"batch_id":        batchID.String(),
			"validation_type": string(req.ValidationType),
		},
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to submit batch validation: %w", err)
	}

	log.Info("batch validation submitted",
		"task_id", id,
		"batch_id", batchID,
		"validation_type", req.ValidationType,
		"priority", req.Priority,
		"submitted_by", req.SubmittedBy)
	return id, nil
}

// job builds the task body for one batch.
func (p *Pipeline) job(batchID uuid.UUID, req BatchRequest, checker *Checker) task.Func {
	return func(ctx context.Context, prog task.Progress) (any, error) {
		info := prog.Info()
		log := p.logger.With("task_id", info.ID, "batch_id", batchID)
		ctx = logger.WithContext(ctx, log)

		result := domain.BatchValidationResult{
			BatchID:        batchID,
			ValidationType: req.ValidationType,
			StartTime:      p.now(),
			Metadata: map[string]any{
				"chunk_size": p.config.ChunkSize,
				"policy":     p.config.Policy.String(),
			},
		}

		prog.Report(5, "fetching properties")
		items, err := p.source.Fetch(ctx, req.Filter)
		if err != nil {
			err = fmt.Errorf("fetching properties: %w", err)
			if p.config.Policy == PropagateFailure {
				return nil, err
			}
			p.fold(log, &result, err)
		}

		if err == nil && len(items) == 0 {
			p.stamp(&result)
			prog.Report(100, "no properties matched the filter")
			log.Info("batch validation found no properties")
			return result, nil
		}

		if err == nil {
			if err := p.validateChunks(ctx, items, checker, prog, &result); err != nil {
				if p.config.Policy == PropagateFailure {
					return nil, err
				}
				p.fold(log, &result, err)
			}
		}
		p.stamp(&result)

		snapshot := domain.NewQualitySnapshot(result, info.ID, req.SubmittedBy, req.Filter, p.now())
		if err := p.sink.Append(ctx, snapshot); err != nil {
			err = fmt.Errorf("recording quality snapshot: %w", err)
			if p.config.Policy == PropagateFailure {
				return nil, err
			}
			p.fold(log, &result, err)
		}

		prog.Report(100, "validation complete")
		log.Info("batch validation finished",
			"total_items", result.TotalItems,
			"valid_items", result.ValidItems,
			"invalid_items", result.InvalidItems,
			"warning_count", result.WarningCount,
			"duration", result.Duration)

		if req.Notify {
			if err := p.notifier.Notify(ctx, result.Clone(), prog.Info()); err != nil {
				log.Warn("batch validation notification failed", "error", err)
			}
		}
		return result, nil
	}
}

// validateChunks evaluates items in chunks, merging each chunk's tallies only
// once the whole chunk succeeded.
func (p *Pipeline) validateChunks(
	ctx context.Context,
	items []domain.Property,
	checker *Checker,
	prog task.Progress,
	result *domain.BatchValidationResult,
) error {
	size := p.config.ChunkSize
	chunks := (len(items) + size - 1) / size

	result.TotalItems = len(items)
	result.Metadata["chunks"] = chunks
	prog.Report(10, fmt.Sprintf("validating %d properties", len(items)))

	for i := 0; i < chunks; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("validation interrupted after %d of %d chunks: %w", i, chunks, err)
		}

		end := min((i+1)*size, len(items))
		tally, err := checkChunk(items[i*size:end], checker)
		if err != nil {
			return fmt.Errorf("chunk %d of %d: %w", i+1, chunks, err)
		}
		result.ProcessedItems += tally.processed
		result.ValidItems += tally.valid
		result.InvalidItems += tally.invalid
		result.WarningCount += tally.warnings
		result.Errors = append(result.Errors, tally.findings...)

		prog.Report(chunkProgress(i, chunks), fmt.Sprintf("validated chunk %d of %d", i+1, chunks))
	}
	return nil
}

// chunkProgress maps completion of chunk i (zero based) of n onto 10..95.
func chunkProgress(i, n int) int {
	return 10 + ((i+1)*85)/n
}

type chunkTally struct {
	processed int
	valid     int
	invalid   int
	warnings  int
	findings  []domain.BatchValidationError
}

// checkChunk validates one chunk. A panicking rule fails the whole chunk.
func checkChunk(items []domain.Property, checker *Checker) (tally chunkTally, err error) {
	defer func() {
		if r := recover(); r != nil {
			tally = chunkTally{}
			err = fmt.Errorf("rule evaluation panicked: %v", r)
		}
	}()

	for _, item := range items {
		findings := checker.Check(item)
		errorsFound, warnings := 0, 0
		for _, f := range findings {
			switch f.Severity {
			case domain.SeverityError:
				errorsFound++
			case domain.SeverityWarning:
				warnings++
			}
		}

		tally.processed++
		if errorsFound > 0 {
			tally.invalid++
		} else {
			// Warnings on an invalid item are kept in the findings but not counted.
			tally.valid++
			tally.warnings += warnings
		}
		tally.findings = append(tally.findings, findings...)
	}
	return tally, nil
}

func (p *Pipeline) fold(log *slog.Logger, result *domain.BatchValidationResult, err error) {
	log.Error("batch validation orchestration failed", "error", err)
	result.Errors = append(result.Errors, domain.BatchValidationError{
		ItemID:    domain.ExecutionErrorItemID,
		ErrorType: domain.ErrorTypeExecutionError,
		Message:   err.Error(),
		Severity:  domain.SeverityError,
	})
}

func (p *Pipeline) stamp(result *domain.BatchValidationResult) {
	result.EndTime = p.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
}
