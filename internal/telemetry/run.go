package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/leadsync/internal/tracker"
)

const syncScopeName = "github.com/steveyegge/leadsync/sync"

// RecordRun adds the outcome counts of one sync run to the
// leadsync.sync.* metrics. It is a no-op when telemetry is disabled.
func RecordRun(ctx context.Context, stats *tracker.RunStatistics) {
	if !Enabled() || stats == nil {
		return
	}
	m := Meter(syncScopeName)
	runs, _ := m.Int64Counter("leadsync.sync.runs",
		metric.WithDescription("Completed sync runs"),
	)
	ops, _ := m.Int64Counter("leadsync.sync.operations",
		metric.WithDescription("Writes performed by sync runs, by kind"),
	)
	errs, _ := m.Int64Counter("leadsync.sync.errors",
		metric.WithDescription("Errors counted by sync runs"),
	)
	dur, _ := m.Float64Histogram("leadsync.sync.duration",
		metric.WithDescription("Sync run duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	dir := attribute.String("leadsync.direction", string(stats.Direction))
	runs.Add(ctx, 1, metric.WithAttributes(dir,
		attribute.Bool("leadsync.success", stats.Success()),
		attribute.Bool("leadsync.interrupted", stats.Interrupted),
	))
	for kind, n := range map[string]int{
		"task_created":   stats.TasksCreated,
		"task_updated":   stats.TasksUpdated,
		"task_relinked":  stats.TasksRelinked,
		"status_pushed":  stats.StatusesPushed,
		"record_skipped": stats.Skipped,
	} {
		if n > 0 {
			ops.Add(ctx, int64(n), metric.WithAttributes(dir, attribute.String("leadsync.kind", kind)))
		}
	}
	if stats.Errors > 0 {
		errs.Add(ctx, int64(stats.Errors), metric.WithAttributes(dir))
	}
	dur.Record(ctx, float64(stats.Duration().Milliseconds()), metric.WithAttributes(dir))
}
