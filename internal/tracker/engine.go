package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/leadsync/internal/types"
)

// Direction selects which flows a run executes.
type Direction string

const (
	// DirectionBoth runs tasks→records, then records→tasks.
	DirectionBoth Direction = "both"
	// DirectionLeadsToTasks runs only records→tasks.
	DirectionLeadsToTasks Direction = "leads-to-tasks"
	// DirectionTasksToLeads runs only tasks→records.
	DirectionTasksToLeads Direction = "tasks-to-leads"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionBoth, DirectionLeadsToTasks, DirectionTasksToLeads:
		return d, nil
	case "":
		return DirectionBoth, nil
	}
	return "", fmt.Errorf("invalid direction %q (want %s, %s or %s)", s,
		DirectionBoth, DirectionLeadsToTasks, DirectionTasksToLeads)
}

// Engine reconciles a RecordStore with a TaskBoard.
//
// A bidirectional run always pushes board positions into the record store
// first, then pushes record fields to the board, so status moves made on the
// board are never overwritten by stale record values in the same run.
type Engine struct {
	Records RecordStore
	Board   TaskBoard
	Lists   *ListMap
	Logger  *slog.Logger

	// RelinkByMarker makes the engine look for an existing task carrying a
	// record's lead marker before creating a new one. Requires a Board that
	// implements TaskFinder.
	RelinkByMarker bool
}

// NewEngine creates a new sync engine for the given record store and board.
func NewEngine(records RecordStore, board TaskBoard, lists *ListMap, logger *slog.Logger) *Engine {
	return &Engine{
		Records: records,
		Board:   board,
		Lists:   lists,
		Logger:  logger,
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Run performs one reconciliation pass. Failures of individual records or
// tasks are logged and counted in the returned statistics. The returned
// error is non-nil only when ctx was cancelled; the statistics gathered up
// to that point are still returned.
func (e *Engine) Run(ctx context.Context, dir Direction) (*RunStatistics, error) {
	stats := &RunStatistics{
		RunID:     uuid.NewString(),
		Direction: dir,
		StartedAt: time.Now().UTC(),
	}
	log := e.logger().With(
		slog.String("run_id", stats.RunID),
		slog.String("direction", string(dir)),
	)
	log.Info("sync started")

	var err error
	switch dir {
	case DirectionBoth:
		err = e.syncTasksToRecords(ctx, log, stats)
		if err == nil {
			err = e.syncRecordsToTasks(ctx, log, stats)
		} else if ctx.Err() == nil {
			log.Warn("skipping records to tasks after tasks to records failed")
		}
	case DirectionTasksToLeads:
		err = e.syncTasksToRecords(ctx, log, stats)
	case DirectionLeadsToTasks:
		err = e.syncRecordsToTasks(ctx, log, stats)
	default:
		err = fmt.Errorf("invalid direction %q", dir)
	}

	stats.FinishedAt = time.Now().UTC()

	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			stats.Interrupted = true
			log.Warn("sync interrupted", slog.Int("errors", stats.Errors))
			return stats, cerr
		}
		stats.Errors++
		log.Error("sync flow failed", slog.String("error", err.Error()))
	}

	log.Info("sync finished",
		slog.Int("tasks_created", stats.TasksCreated),
		slog.Int("tasks_updated", stats.TasksUpdated),
		slog.Int("tasks_relinked", stats.TasksRelinked),
		slog.Int("statuses_pushed", stats.StatusesPushed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("errors", stats.Errors),
		slog.Int("total_operations", stats.TotalOperations()),
		slog.Duration("duration", stats.Duration()))
	return stats, nil
}

// syncTasksToRecords writes the status implied by each linked task's list
// into its record. It returns an error only when a listing fails or ctx is
// cancelled.
func (e *Engine) syncTasksToRecords(ctx context.Context, log *slog.Logger, stats *RunStatistics) error {
	log = log.With(slog.String("flow", "tasks_to_records"))
	log.Info("syncing tasks to records")

	tasks, err := e.Board.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	if len(tasks) == 0 {
		log.Warn("no tasks found on board")
		return nil
	}

	records, err := e.Records.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}
	byRef := indexByTaskRef(log, records)

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok := byRef[task.ID]
		if !ok {
			stats.Skipped++
			log.Debug("task not linked to any record", slog.String("task_id", task.ID), slog.String("task", task.Title))
			continue
		}
		if err := e.pushStatus(ctx, log, task, rec, stats); err != nil {
			if ctx.Err() != nil {
				return err
			}
			stats.Errors++
			log.Error("failed to sync task to record",
				slog.String("task_id", task.ID),
				slog.String("task", task.Title),
				slog.String("lead_id", rec.ExternalID),
				slog.Int("row", rec.Position),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// indexByTaskRef maps task IDs to the record referencing them. When several
// records reference the same task the later row wins.
func indexByTaskRef(log *slog.Logger, records []types.Record) map[string]types.Record {
	byRef := make(map[string]types.Record, len(records))
	for _, r := range records {
		r = r.Trimmed()
		if r.TaskRef == "" {
			continue
		}
		if prev, dup := byRef[r.TaskRef]; dup {
			log.Warn("task referenced by more than one record, using the later row",
				slog.String("task_id", r.TaskRef),
				slog.Int("row", prev.Position),
				slog.Int("later_row", r.Position))
		}
		byRef[r.TaskRef] = r
	}
	return byRef
}

func (e *Engine) pushStatus(ctx context.Context, log *slog.Logger, task types.Task, rec types.Record, stats *RunStatistics) error {
	boardStatus := e.Lists.StatusForList(task.ListID)
	if boardStatus == types.NormalizeStatus(rec.Status) {
		return nil
	}
	value := boardStatus.Upper()
	if err := e.Records.UpdateRecord(ctx, rec.Position, types.RecordUpdate{Status: &value}); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	stats.StatusesPushed++
	log.Info("pushed status to record",
		slog.String("lead_id", rec.ExternalID),
		slog.Int("row", rec.Position),
		slog.String("from", rec.Status),
		slog.String("to", value))
	return nil
}

// syncRecordsToTasks creates, updates or recreates the task for each
// record. It returns an error only when listing records fails or ctx is
// cancelled.
func (e *Engine) syncRecordsToTasks(ctx context.Context, log *slog.Logger, stats *RunStatistics) error {
	log = log.With(slog.String("flow", "records_to_tasks"))
	log.Info("syncing records to tasks")

	records, err := e.Records.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}
	if len(records) == 0 {
		log.Warn("no records found in store")
		return nil
	}

	for _, raw := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := raw.Trimmed()
		if rec.DisplayName == "" {
			stats.Skipped++
			log.Debug("skipping record without a name", slog.Int("row", rec.Position))
			continue
		}
		if err := e.reconcileRecord(ctx, log, rec, stats); err != nil {
			if ctx.Err() != nil {
				return err
			}
			stats.Errors++
			log.Error("failed to sync record to task",
				slog.String("lead_id", rec.ExternalID),
				slog.String("name", rec.DisplayName),
				slog.Int("row", rec.Position),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (e *Engine) desiredTask(rec types.Record) types.NewTask {
	return types.NewTask{
		Title:  rec.DisplayName,
		Body:   FormatTaskBody(rec.Email, rec.Origin, rec.ExternalID),
		ListID: e.Lists.ListForStatus(types.NormalizeStatus(rec.Status)),
	}
}

func (e *Engine) reconcileRecord(ctx context.Context, log *slog.Logger, rec types.Record, stats *RunStatistics) error {
	want := e.desiredTask(rec)

	var task *types.Task
	if rec.TaskRef == "" {
		found, err := e.relink(ctx, log, rec, stats)
		if err != nil {
			return err
		}
		if found == nil {
			return e.createTask(ctx, log, rec, want, stats)
		}
		task = found
	} else {
		var err error
		task, err = e.Board.GetTask(ctx, rec.TaskRef)
		if err != nil {
			return fmt.Errorf("fetching task %s: %w", rec.TaskRef, err)
		}
		if task == nil {
			log.Warn("linked task not found, creating a replacement",
				slog.String("lead_id", rec.ExternalID),
				slog.String("task_id", rec.TaskRef),
				slog.Int("row", rec.Position))
			return e.createTask(ctx, log, rec, want, stats)
		}
	}

	update := e.diffTask(task, want, types.NormalizeStatus(rec.Status))
	if update.IsEmpty() {
		return nil
	}
	if _, err := e.Board.UpdateTask(ctx, task.ID, update); err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	stats.TasksUpdated++
	log.Info("updated task",
		slog.String("lead_id", rec.ExternalID),
		slog.String("task_id", task.ID),
		slog.Any("fields", update.Fields()))
	return nil
}

// relink looks for an existing task carrying rec's lead marker and, if one
// exists, records its ID on rec.
func (e *Engine) relink(ctx context.Context, log *slog.Logger, rec types.Record, stats *RunStatistics) (*types.Task, error) {
	if !e.RelinkByMarker || rec.ExternalID == "" {
		return nil, nil
	}
	finder, ok := e.Board.(TaskFinder)
	if !ok {
		return nil, nil
	}
	task, err := finder.FindTaskByLeadID(ctx, rec.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("searching for task by lead id: %w", err)
	}
	if task == nil {
		return nil, nil
	}
	if err := e.writeTaskRef(ctx, rec, task.ID); err != nil {
		return nil, err
	}
	stats.TasksRelinked++
	log.Info("relinked record to existing task",
		slog.String("lead_id", rec.ExternalID),
		slog.String("task_id", task.ID),
		slog.Int("row", rec.Position))
	return task, nil
}

func (e *Engine) createTask(ctx context.Context, log *slog.Logger, rec types.Record, want types.NewTask, stats *RunStatistics) error {
	created, err := e.Board.CreateTask(ctx, want)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	if created == nil || created.ID == "" {
		return errors.New("creating task: board returned no task id")
	}
	stats.TasksCreated++
	log.Info("created task",
		slog.String("lead_id", rec.ExternalID),
		slog.String("name", rec.DisplayName),
		slog.String("task_id", created.ID),
		slog.Int("row", rec.Position))

	return e.writeTaskRef(ctx, rec, created.ID)
}

func (e *Engine) writeTaskRef(ctx context.Context, rec types.Record, taskID string) error {
	if err := e.Records.UpdateRecord(ctx, rec.Position, types.RecordUpdate{TaskRef: &taskID}); err != nil {
		return fmt.Errorf("writing task ref %s to row %d: %w", taskID, rec.Position, err)
	}
	return nil
}

// diffTask returns the fields of want that differ from task. The list is
// compared by canonical status, so a task on an unmapped list is left where
// it is while the record's status is new.
func (e *Engine) diffTask(task *types.Task, want types.NewTask, status types.Status) types.TaskUpdate {
	var u types.TaskUpdate
	if task.Title != want.Title {
		u.Title = &want.Title
	}
	if task.Body != want.Body {
		u.Body = &want.Body
	}
	if e.Lists.StatusForList(task.ListID) != status {
		u.ListID = &want.ListID
	}
	return u
}
