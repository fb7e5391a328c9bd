package tracker

import (
	"context"
	"fmt"

	"github.com/steveyegge/leadsync/internal/retry"
	"github.com/steveyegge/leadsync/internal/types"
)

// RecordsWithRetry wraps every call to store in policy.
func RecordsWithRetry(store RecordStore, policy *retry.Policy) RecordStore {
	return &retryingRecords{inner: store, policy: policy}
}

type retryingRecords struct {
	inner  RecordStore
	policy *retry.Policy
}

func (r *retryingRecords) ListRecords(ctx context.Context) ([]types.Record, error) {
	return retry.Value(ctx, r.policy, "records.list", r.inner.ListRecords)
}

func (r *retryingRecords) UpdateRecord(ctx context.Context, position int, update types.RecordUpdate) error {
	return r.policy.Do(ctx, fmt.Sprintf("records.update row %d", position), func(ctx context.Context) error {
		return r.inner.UpdateRecord(ctx, position, update)
	})
}

// AppendRecord retries appends when the wrapped store supports them.
func (r *retryingRecords) AppendRecord(ctx context.Context, lead types.NewLead) (int, error) {
	appender, ok := r.inner.(RecordAppender)
	if !ok {
		return 0, fmt.Errorf("record store does not support appending")
	}
	return retry.Value(ctx, r.policy, "records.append", func(ctx context.Context) (int, error) {
		return appender.AppendRecord(ctx, lead)
	})
}

// BoardWithRetry wraps every call to board in policy. The result also
// implements TaskFinder when board does.
func BoardWithRetry(board TaskBoard, policy *retry.Policy) TaskBoard {
	rb := &retryingBoard{inner: board, policy: policy}
	if f, ok := board.(TaskFinder); ok {
		return &retryingFinderBoard{retryingBoard: rb, finder: f}
	}
	return rb
}

type retryingBoard struct {
	inner  TaskBoard
	policy *retry.Policy
}

func (b *retryingBoard) ListTasks(ctx context.Context) ([]types.Task, error) {
	return retry.Value(ctx, b.policy, "board.list", b.inner.ListTasks)
}

func (b *retryingBoard) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return retry.Value(ctx, b.policy, "board.get "+id, func(ctx context.Context) (*types.Task, error) {
		return b.inner.GetTask(ctx, id)
	})
}

func (b *retryingBoard) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	return retry.Value(ctx, b.policy, "board.create", func(ctx context.Context) (*types.Task, error) {
		return b.inner.CreateTask(ctx, task)
	})
}

func (b *retryingBoard) UpdateTask(ctx context.Context, id string, update types.TaskUpdate) (*types.Task, error) {
	return retry.Value(ctx, b.policy, "board.update "+id, func(ctx context.Context) (*types.Task, error) {
		return b.inner.UpdateTask(ctx, id, update)
	})
}

type retryingFinderBoard struct {
	*retryingBoard
	finder TaskFinder
}

func (b *retryingFinderBoard) FindTaskByLeadID(ctx context.Context, leadID string) (*types.Task, error) {
	return retry.Value(ctx, b.policy, "board.find "+leadID, func(ctx context.Context) (*types.Task, error) {
		return b.finder.FindTaskByLeadID(ctx, leadID)
	})
}
