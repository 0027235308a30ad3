package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/events"
	"github.com/phrazzld/assessment-engine/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 3 * time.Second

// MockSource is a PropertySource backed by a slice.
type MockSource struct {
	Items   []domain.Property
	FetchFn func(ctx context.Context, filter domain.ValidationFilter) ([]domain.Property, error)

	mu      sync.Mutex
	filters []domain.ValidationFilter
}

func (m *MockSource) Fetch(ctx context.Context, filter domain.ValidationFilter) ([]domain.Property, error) {
	m.mu.Lock()
	m.filters = append(m.filters, filter)
	m.mu.Unlock()
	if m.FetchFn != nil {
		return m.FetchFn(ctx, filter)
	}
	return applyFilter(filter, m.Items), nil
}

// applyFilter selects items by property type and land use code, then
// truncates to Limit. Other constraints are left to the database.
func applyFilter(filter domain.ValidationFilter, items []domain.Property) []domain.Property {
	out := make([]domain.Property, 0, len(items))
	for _, p := range items {
		if len(filter.PropertyTypes) > 0 && !slices.Contains(filter.PropertyTypes, p.PropertyType) {
			continue
		}
		if len(filter.LandUseCodes) > 0 && !slices.Contains(filter.LandUseCodes, p.LandUseCode) {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

// MockSink records appended snapshots.
type MockSink struct {
	AppendFn func(ctx context.Context, s domain.QualitySnapshot) error

	mu        sync.Mutex
	snapshots []domain.QualitySnapshot
}

func (m *MockSink) Append(ctx context.Context, s domain.QualitySnapshot) error {
	if m.AppendFn != nil {
		if err := m.AppendFn(ctx, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *MockSink) Snapshots() []domain.QualitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.QualitySnapshot(nil), m.snapshots...)
}

// recordingNotifier counts notifications.
type recordingNotifier struct {
	mu      sync.Mutex
	results []domain.BatchValidationResult
	infos   []task.Info
}

func (n *recordingNotifier) Notify(ctx context.Context, r domain.BatchValidationResult, info task.Info) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
	n.infos = append(n.infos, info)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.results)
}

type harness struct {
	engine   *task.Engine
	pipeline *Pipeline
	source   *MockSource
	sink     *MockSink
	notifier *recordingNotifier
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, cfg PipelineConfig, items []domain.Property) *harness {
	t.Helper()

	engineCfg := task.DefaultConfig()
	engineCfg.MaxConcurrent = 1
	engineCfg.SweepSchedule = ""
	engine, err := task.New(engineCfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, engine.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = engine.Stop(ctx)
	})

	h := &harness{
		engine:   engine,
		source:   &MockSource{Items: items},
		sink:     &MockSink{},
		notifier: &recordingNotifier{},
	}
	h.pipeline, err = NewPipeline(engine, newRuleSets(t), h.source, h.sink, h.notifier, cfg, discardLogger())
	require.NoError(t, err)
	return h
}

// run submits req and waits for the task to finish, returning its final
// snapshot and every event it published.
func (h *harness) run(t *testing.T, req BatchRequest) (task.Info, []task.Event) {
	t.Helper()

	stream, unsub := h.engine.Subscribe(256, nil)
	defer unsub()

	id, err := h.pipeline.SubmitBatchValidation(context.Background(), req)
	require.NoError(t, err)

	var seen []task.Event
	timeout := time.After(waitTimeout)
	for {
		select {
		case ev := <-stream:
			if ev.Subject != id.String() {
				continue
			}
			seen = append(seen, ev)
			if ev.Kind.Terminal() {
				return ev.Payload, seen
			}
		case <-timeout:
			t.Fatalf("batch %s did not finish", id)
		}
	}
}

func resultOf(t *testing.T, h *harness, info task.Info) domain.BatchValidationResult {
	t.Helper()
	r, ok := task.ResultAs[domain.BatchValidationResult](h.engine, info.ID)
	require.True(t, ok, "task %s has no batch result", info.ID)
	return r
}

func progressValues(evs []task.Event) []int {
	var out []int
	for _, ev := range evs {
		if ev.Kind == events.KindProgress {
			out = append(out, ev.Payload.Progress)
		}
	}
	return out
}

func properties(n int) []domain.Property {
	out := make([]domain.Property, n)
	for i := range out {
		out[i] = validProperty(fmt.Sprintf("prop-%03d", i))
	}
	return out
}

func TestPipeline_ChunkedProgress(t *testing.T) {
	h := newHarness(t, DefaultPipelineConfig(), properties(250))

	info, evs := h.run(t, BatchRequest{ValidationType: domain.ValidationFullAssessment})

	assert.Equal(t, task.StatusCompleted, info.Status)
	assert.Equal(t, 100, info.Progress)

	r := resultOf(t, h, info)
	assert.Equal(t, 250, r.TotalItems)
	assert.Equal(t, 250, r.ProcessedItems)
	assert.Equal(t, 3, r.Metadata["chunks"])

	// 5 fetching, 10 start, one per chunk, then the held final report.
	assert.Equal(t, []int{5, 10, 38, 66, 95, 95}, progressValues(evs))
	last := evs[len(evs)-1]
	assert.Equal(t, events.KindCompleted, last.Kind)
	assert.Equal(t, 100, last.Payload.Progress)
}

func TestPipeline_EmptyBatch(t *testing.T) {
	h := newHarness(t, DefaultPipelineConfig(), nil)

	info, evs := h.run(t, BatchRequest{ValidationType: domain.ValidationRequiredFields, Notify: true})

	assert.Equal(t, task.StatusCompleted, info.Status)
	r := resultOf(t, h, info)
	assert.Equal(t, 0, r.TotalItems)
	assert.Equal(t, 0, r.ProcessedItems)
	assert.Empty(t, r.Errors)
	assert.Equal(t, []int{5, 5}, progressValues(evs))
	assert.Empty(t, h.sink.Snapshots())
	assert.Equal(t, 0, h.notifier.count())
}

func TestPipeline_CountsAddUp(t *testing.T) {
	for _, n := range []int{1, 99, 100, 101, 1000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			items := properties(n)
			for i := range items {
				if i%7 == 0 {
					items[i].LandUseCode = "ZZ"
				}
			}
			h := newHarness(t, DefaultPipelineConfig(), items)

			info, _ := h.run(t, BatchRequest{ValidationType: domain.ValidationCodes})
			r := resultOf(t, h, info)

			assert.Equal(t, n, r.TotalItems)
			assert.Equal(t, n, r.ProcessedItems)
			assert.Equal(t, n, r.ValidItems+r.InvalidItems)
			assert.Equal(t, (n+6)/7, r.InvalidItems)
		})
	}
}

func TestPipeline_SeverityAggregation(t *testing.T) {
	warnOnly := validProperty("warn-only")
	warnOnly.PropertyType = "VACANT_LAND"

	mixed := validProperty("mixed")
	mixed.PropertyType = "VACANT_LAND"
	mixed.LandUseCode = "ZZ"

	clean := validProperty("clean")

	h := newHarness(t, DefaultPipelineConfig(), []domain.Property{warnOnly, mixed, clean})
	info, _ := h.run(t, BatchRequest{ValidationType: domain.ValidationFullAssessment})
	r := resultOf(t, h, info)

	assert.Equal(t, 2, r.ValidItems)
	assert.Equal(t, 1, r.InvalidItems)
	assert.Equal(t, 1, r.WarningCount, "only valid items contribute warnings")
	assert.Len(t, r.Errors, 3, "findings for every item are kept")

	warningFindings := 0
	for _, e := range r.Errors {
		if e.Severity == domain.SeverityWarning {
			warningFindings++
		}
	}
	assert.Equal(t, 2, warningFindings, "the invalid item's warning stays in the findings")
	assert.Equal(t, map[string]int{
		domain.ErrorTypeUnexpectedImprovementValue: 2,
		domain.ErrorTypeInvalidCode:                1,
	}, r.ErrorTypeCounts())
}

func TestPipeline_MissingParcelAndInconsistentTotal(t *testing.T) {
	item := validProperty("scenario-b")
	item.ParcelNumber = ""
	item.TotalValue = domain.Float(999999)

	h := newHarness(t, DefaultPipelineConfig(), []domain.Property{item})
	info, _ := h.run(t, BatchRequest{ValidationType: domain.ValidationFullAssessment})
	r := resultOf(t, h, info)

	require.Len(t, r.Errors, 2)
	assert.Equal(t, domain.ErrorTypeMissingRequiredField, r.Errors[0].ErrorType)
	assert.Equal(t, domain.ErrorTypeValueInconsistency, r.Errors[1].ErrorType)
	assert.Equal(t, 1, r.InvalidItems)
	assert.Equal(t, 0, r.ValidItems)
}

func TestPipeline_PersistsSnapshotAndNotifiesOnce(t *testing.T) {
	h := newHarness(t, DefaultPipelineConfig(), properties(3))
	filter := domain.ValidationFilter{PropertyTypes: []string{"RESIDENTIAL"}, Limit: 2}

	info, _ := h.run(t, BatchRequest{
		ValidationType: domain.ValidationFullAssessment,
		Filter:         filter,
		Priority:       task.PriorityHigh,
		SubmittedBy:    "assessor-9",
		Notify:         true,
	})

	r := resultOf(t, h, info)
	assert.Equal(t, 2, r.TotalItems, "filter is passed to the source")

	snaps := h.sink.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, r.BatchID, snaps[0].BatchID)
	assert.Equal(t, info.ID, snaps[0].TaskID)
	assert.Equal(t, "assessor-9", snaps[0].SubmittedBy)
	assert.Equal(t, filter, snaps[0].Filter)

	require.Equal(t, 1, h.notifier.count())
	assert.Equal(t, r.BatchID, h.notifier.results[0].BatchID)
	assert.Equal(t, info.ID, h.notifier.infos[0].ID)
	assert.Equal(t, task.PriorityHigh, info.Priority)
	assert.Equal(t, "assessor-9", info.SubmittedBy)
	assert.Equal(t, r.BatchID.String(), info.Metadata["batch_id"])
}

func TestPipeline_FetchFailureIsFoldedIntoResult(t *testing.T) {
	h := newHarness(t, DefaultPipelineConfig(), nil)
	h.source.FetchFn = func(ctx context.Context, _ domain.ValidationFilter) ([]domain.Property, error) {
		return nil, errors.New("connection refused")
	}

	info, _ := h.run(t, BatchRequest{ValidationType: domain.ValidationFullAssessment, Notify: true})

	assert.Equal(t, task.StatusCompleted, info.Status)
	r := resultOf(t, h, info)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, domain.ExecutionErrorItemID, r.Errors[0].ItemID)
	assert.Equal(t, domain.ErrorTypeExecutionError, r.Errors[0].ErrorType)
	assert.Equal(t, domain.SeverityError, r.Errors[0].Severity)
	assert.Contains(t, r.Errors[0].Message, "connection refused")
	assert.True(t, r.HasExecutionError())

	snaps := h.sink.Snapshots()
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].ExecutionError)
	assert.Equal(t, 1, h.notifier.count())
}

func TestPipeline_FetchFailurePropagates(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Policy = PropagateFailure
	h := newHarness(t, cfg, nil)
	h.source.FetchFn = func(ctx context.Context, _ domain.ValidationFilter) ([]domain.Property, error) {
		return nil, errors.New("connection refused")
	}

	info, _ := h.run(t, BatchRequest{ValidationType: domain.ValidationFullAssessment, Notify: true})

	assert.Equal(t, task.StatusFailed, info.Status)
	assert.Contains(t, info.Error, "connection refused")
	assert.Empty(t, h.sink.Snapshots())
	assert.Equal(t, 0, h.notifier.count())
}

func TestPipeline_PersistFailureIsFolded(t *testing.T) {
	h := newHarness(t, DefaultPipelineConfig(), properties(2))
	h.sink.AppendFn = func(ctx context.Context, _ domain.QualitySnapshot) error {
		return errors.New("disk full")
	}

	info, _ := h.run(t, BatchRequest{ValidationType: domain.ValidationRequiredFields})

	assert.Equal(t, task.StatusCompleted, info.Status)
	r := resultOf(t, h, info)
	assert.Equal(t, 2, r.ValidItems)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, domain.ErrorTypeExecutionError, r.Errors[0].ErrorType)
	assert.Contains(t, r.Errors[0].Message, "disk full")
}

func TestPipeline_ChunkPanicKeepsPartialResult(t *testing.T) {
	items := properties(150)
	items[120].ID = "explode"

	rs := newRuleSets(t)
	rs.sets[domain.ValidationRequiredFields] = append(rs.sets[domain.ValidationRequiredFields], Rule{
		Name: "explosive",
		Check: func(p domain.Property, _ *runConfig) []domain.BatchValidationError {
			if p.ID == "explode" {
				panic("bad rule")
			}
			return nil
		},
	})

	h := newHarness(t, DefaultPipelineConfig(), items)
	var err error
	h.pipeline, err = NewPipeline(h.engine, rs, h.source, h.sink, h.notifier, DefaultPipelineConfig(), discardLogger())
	require.NoError(t, err)

	info, _ := h.run(t, BatchRequest{ValidationType: domain.ValidationRequiredFields})

	assert.Equal(t, task.StatusCompleted, info.Status)
	r := resultOf(t, h, info)
	assert.Equal(t, 150, r.TotalItems)
	assert.Equal(t, 100, r.ProcessedItems, "the failing chunk contributes nothing")
	assert.Equal(t, r.ProcessedItems, r.ValidItems+r.InvalidItems)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0].Message, "chunk 2 of 2")
}

func TestPipeline_SubmitRejectsInvalidRequests(t *testing.T) {
	h := newHarness(t, DefaultPipelineConfig(), nil)

	tests := []struct {
		name string
		req  BatchRequest
	}{
		{"missing type", BatchRequest{}},
		{"unknown type", BatchRequest{ValidationType: "SPELLING"}},
		{"bad priority", BatchRequest{ValidationType: domain.ValidationCodes, Priority: "urgent"}},
		{"bad filter", BatchRequest{ValidationType: domain.ValidationCodes, Filter: domain.ValidationFilter{Limit: -1}}},
		{
			"bad params",
			BatchRequest{ValidationType: domain.ValidationCodes, Params: Params{RequiredFields: []string{"shoeSize"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := h.pipeline.SubmitBatchValidation(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
			assert.Equal(t, uuid.Nil, id)
		})
	}
	assert.Empty(t, h.engine.List(nil))
}

func TestPipeline_SubmitSurfacesEngineErrors(t *testing.T) {
	h := newHarness(t, DefaultPipelineConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, h.engine.Stop(ctx))

	_, err := h.pipeline.SubmitBatchValidation(context.Background(), BatchRequest{ValidationType: domain.ValidationCodes})
	assert.True(t, errors.Is(err, task.ErrEngineStopped))
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(nil, nil, nil, nil, nil, DefaultPipelineConfig(), nil)
	assert.Error(t, err)

	h := newHarness(t, DefaultPipelineConfig(), nil)
	_, err = NewPipeline(h.engine, newRuleSets(t), h.source, h.sink, nil, PipelineConfig{ChunkSize: 0}, nil)
	assert.Error(t, err)
}

func TestChunkProgress(t *testing.T) {
	assert.Equal(t, 95, chunkProgress(0, 1))
	assert.Equal(t, []int{38, 66, 95}, []int{chunkProgress(0, 3), chunkProgress(1, 3), chunkProgress(2, 3)})
	assert.Equal(t, 52, chunkProgress(0, 2))
}
