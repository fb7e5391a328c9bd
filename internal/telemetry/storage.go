package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/leadsync/internal/tracker"
	"github.com/steveyegge/leadsync/internal/types"
)

const storageScopeName = "github.com/steveyegge/leadsync/storage"

// instruments are shared by the record store and board decorators. The
// "leadsync.backend" attribute tells them apart.
type instruments struct {
	backend string
	tracer  trace.Tracer
	ops     metric.Int64Counter
	dur     metric.Float64Histogram
	errs    metric.Int64Counter
}

func newInstruments(backend string) *instruments {
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("leadsync.backend.operations",
		metric.WithDescription("Total calls made to the record store and the board"),
	)
	dur, _ := m.Float64Histogram("leadsync.backend.operation.duration",
		metric.WithDescription("Backend call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("leadsync.backend.errors",
		metric.WithDescription("Total failed backend calls"),
	)
	return &instruments{
		backend: backend,
		tracer:  Tracer(storageScopeName),
		ops:     ops,
		dur:     dur,
		errs:    errs,
	}
}

// op starts a span and counts the named backend call.
func (in *instruments) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	all := append([]attribute.KeyValue{
		attribute.String("leadsync.backend", in.backend),
		attribute.String("leadsync.operation", name),
	}, attrs...)
	ctx, span := in.tracer.Start(ctx, in.backend+"."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	in.ops.Add(ctx, 1, metric.WithAttributes(all[:2]...))
	return ctx, span, time.Now(), all[:2]
}

// done ends the span, records duration and optional error.
func (in *instruments) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	in.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		in.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Record store ────────────────────────────────────────────────────────────

// InstrumentedRecords wraps a tracker.RecordStore with OTel tracing and
// metrics. Use WrapRecordStore to create one.
type InstrumentedRecords struct {
	inner tracker.RecordStore
	in    *instruments
}

// WrapRecordStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapRecordStore(s tracker.RecordStore) tracker.RecordStore {
	if !Enabled() {
		return s
	}
	return &InstrumentedRecords{inner: s, in: newInstruments("records")}
}

func (s *InstrumentedRecords) ListRecords(ctx context.Context) ([]types.Record, error) {
	ctx, span, t, attrs := s.in.op(ctx, "ListRecords")
	v, err := s.inner.ListRecords(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("leadsync.result.count", len(v)))
	}
	s.in.done(ctx, span, t, err, attrs)
	return v, err
}

func (s *InstrumentedRecords) UpdateRecord(ctx context.Context, position int, update types.RecordUpdate) error {
	ctx, span, t, attrs := s.in.op(ctx, "UpdateRecord",
		attribute.Int("leadsync.record.row", position),
		attribute.Bool("leadsync.update.status", update.Status != nil),
		attribute.Bool("leadsync.update.task_ref", update.TaskRef != nil),
	)
	err := s.inner.UpdateRecord(ctx, position, update)
	s.in.done(ctx, span, t, err, attrs)
	return err
}

func (s *InstrumentedRecords) AppendRecord(ctx context.Context, lead types.NewLead) (int, error) {
	appender, ok := s.inner.(tracker.RecordAppender)
	if !ok {
		return 0, fmt.Errorf("record store does not support appending")
	}
	ctx, span, t, attrs := s.in.op(ctx, "AppendRecord")
	row, err := appender.AppendRecord(ctx, lead)
	if err == nil {
		span.SetAttributes(attribute.Int("leadsync.record.row", row))
	}
	s.in.done(ctx, span, t, err, attrs)
	return row, err
}

// ── Task board ──────────────────────────────────────────────────────────────

// InstrumentedBoard wraps a tracker.TaskBoard with OTel tracing and metrics.
// Use WrapTaskBoard to create one.
type InstrumentedBoard struct {
	inner tracker.TaskBoard
	in    *instruments
}

// WrapTaskBoard returns b decorated with OTel instrumentation. The result
// implements tracker.TaskFinder when b does. When telemetry is disabled, b
// is returned as-is.
func WrapTaskBoard(b tracker.TaskBoard) tracker.TaskBoard {
	if !Enabled() {
		return b
	}
	ib := &InstrumentedBoard{inner: b, in: newInstruments("board")}
	if f, ok := b.(tracker.TaskFinder); ok {
		return &instrumentedFinderBoard{InstrumentedBoard: ib, finder: f}
	}
	return ib
}

func (b *InstrumentedBoard) ListTasks(ctx context.Context) ([]types.Task, error) {
	ctx, span, t, attrs := b.in.op(ctx, "ListTasks")
	v, err := b.inner.ListTasks(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("leadsync.result.count", len(v)))
	}
	b.in.done(ctx, span, t, err, attrs)
	return v, err
}

func (b *InstrumentedBoard) GetTask(ctx context.Context, id string) (*types.Task, error) {
	ctx, span, t, attrs := b.in.op(ctx, "GetTask", attribute.String("leadsync.task.id", id))
	v, err := b.inner.GetTask(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.Bool("leadsync.task.found", v != nil))
	}
	b.in.done(ctx, span, t, err, attrs)
	return v, err
}

func (b *InstrumentedBoard) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	ctx, span, t, attrs := b.in.op(ctx, "CreateTask", attribute.String("leadsync.task.list", task.ListID))
	v, err := b.inner.CreateTask(ctx, task)
	if err == nil && v != nil {
		span.SetAttributes(attribute.String("leadsync.task.id", v.ID))
	}
	b.in.done(ctx, span, t, err, attrs)
	return v, err
}

func (b *InstrumentedBoard) UpdateTask(ctx context.Context, id string, update types.TaskUpdate) (*types.Task, error) {
	ctx, span, t, attrs := b.in.op(ctx, "UpdateTask",
		attribute.String("leadsync.task.id", id),
		attribute.StringSlice("leadsync.update.fields", update.Fields()),
	)
	v, err := b.inner.UpdateTask(ctx, id, update)
	b.in.done(ctx, span, t, err, attrs)
	return v, err
}

type instrumentedFinderBoard struct {
	*InstrumentedBoard
	finder tracker.TaskFinder
}

func (b *instrumentedFinderBoard) FindTaskByLeadID(ctx context.Context, leadID string) (*types.Task, error) {
	ctx, span, t, attrs := b.in.op(ctx, "FindTaskByLeadID", attribute.String("leadsync.lead.id", leadID))
	v, err := b.finder.FindTaskByLeadID(ctx, leadID)
	if err == nil {
		span.SetAttributes(attribute.Bool("leadsync.task.found", v != nil))
	}
	b.in.done(ctx, span, t, err, attrs)
	return v, err
}
