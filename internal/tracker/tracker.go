// Package tracker reconciles a lead record store with a kanban task board.
// It defines the collaborator interfaces both sides implement and the
// Engine that drives the two sync flows.
package tracker

import (
	"context"

	"github.com/steveyegge/leadsync/internal/types"
)

// RecordStore is the tabular lead store (a spreadsheet range).
type RecordStore interface {
	// ListRecords returns every data row in store order.
	ListRecords(ctx context.Context) ([]types.Record, error)

	// UpdateRecord applies a partial write to the row at position.
	UpdateRecord(ctx context.Context, position int, update types.RecordUpdate) error
}

// RecordAppender is implemented by stores that can add new lead rows.
type RecordAppender interface {
	// AppendRecord adds a row and returns its position.
	AppendRecord(ctx context.Context, lead types.NewLead) (int, error)
}

// TaskBoard is the kanban board holding one task per linked record.
type TaskBoard interface {
	// ListTasks returns every open task on the board.
	ListTasks(ctx context.Context) ([]types.Task, error)

	// GetTask fetches a single task by ID.
	// Returns nil, nil if the task doesn't exist.
	GetTask(ctx context.Context, id string) (*types.Task, error)

	// CreateTask creates a task and returns it with its ID populated.
	CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error)

	// UpdateTask applies a partial write to an existing task.
	UpdateTask(ctx context.Context, id string, update types.TaskUpdate) (*types.Task, error)
}

// TaskFinder is implemented by boards that can locate a task by the lead
// marker embedded in its body.
type TaskFinder interface {
	// FindTaskByLeadID returns the first task whose body carries the marker
	// for leadID, or nil, nil if none does.
	FindTaskByLeadID(ctx context.Context, leadID string) (*types.Task, error)
}
