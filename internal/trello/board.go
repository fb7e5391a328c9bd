package trello

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/leadsync/internal/tracker"
	"github.com/steveyegge/leadsync/internal/types"
)

// TaskBoard adapts a board-scoped Client to tracker.TaskBoard.
type TaskBoard struct {
	client *Client
}

var (
	_ tracker.TaskBoard  = (*TaskBoard)(nil)
	_ tracker.TaskFinder = (*TaskBoard)(nil)
)

// NewTaskBoard returns a TaskBoard backed by client. The client must have a
// board ID.
func NewTaskBoard(client *Client) *TaskBoard {
	return &TaskBoard{client: client}
}

func cardToTask(c *Card) *types.Task {
	return &types.Task{
		ID:     c.ID,
		Title:  c.Name,
		Body:   c.Desc,
		ListID: c.IDList,
		URL:    c.ShortURL,
	}
}

// ListTasks returns every open card on the board.
func (b *TaskBoard) ListTasks(ctx context.Context) ([]types.Task, error) {
	cards, err := b.client.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]types.Task, 0, len(cards))
	for i := range cards {
		if cards[i].Closed {
			continue
		}
		tasks = append(tasks, *cardToTask(&cards[i]))
	}
	return tasks, nil
}

// GetTask fetches a card. Archived cards and cards on other boards are
// reported as not found so the engine replaces them.
func (b *TaskBoard) GetTask(ctx context.Context, id string) (*types.Task, error) {
	card, err := b.client.GetCard(ctx, id)
	if err != nil || card == nil {
		return nil, err
	}
	if card.Closed || (card.IDBoard != "" && card.IDBoard != b.client.BoardID) {
		return nil, nil
	}
	return cardToTask(card), nil
}

// CreateTask creates a card.
func (b *TaskBoard) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	card, err := b.client.CreateCard(ctx, CardCreate{Name: task.Title, Desc: task.Body, IDList: task.ListID})
	if err != nil {
		return nil, err
	}
	return cardToTask(card), nil
}

// UpdateTask applies a partial update to a card.
func (b *TaskBoard) UpdateTask(ctx context.Context, id string, update types.TaskUpdate) (*types.Task, error) {
	card, err := b.client.UpdateCard(ctx, id, CardUpdate{Name: update.Title, Desc: update.Body, IDList: update.ListID})
	if err != nil {
		return nil, err
	}
	return cardToTask(card), nil
}

// FindTaskByLeadID scans the board for a card carrying the lead marker.
func (b *TaskBoard) FindTaskByLeadID(ctx context.Context, leadID string) (*types.Task, error) {
	cards, err := b.client.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		if !cards[i].Closed && tracker.HasLeadID(cards[i].Desc, leadID) {
			return cardToTask(&cards[i]), nil
		}
	}
	return nil, nil
}

// ErrInvalidBoard marks a board that answered but cannot be synced: it is
// closed or lacks a configured list. Retrying does not change the outcome.
var ErrInvalidBoard = errors.New("invalid board")

// Validate checks that the board is reachable and open and that every list
// in listIDs exists on it.
func (b *TaskBoard) Validate(ctx context.Context, listIDs []string) (*Board, error) {
	board, err := b.client.GetBoard(ctx)
	if err != nil {
		return nil, err
	}
	if board.Closed {
		return board, fmt.Errorf("%w: board %s (%s) is closed", ErrInvalidBoard, board.ID, board.Name)
	}
	lists, err := b.client.ListLists(ctx)
	if err != nil {
		return board, err
	}
	open := make(map[string]bool, len(lists))
	for _, l := range lists {
		if !l.Closed {
			open[l.ID] = true
		}
	}
	var missing []string
	for _, id := range listIDs {
		if !open[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return board, fmt.Errorf("%w: lists not found on board %s: %s", ErrInvalidBoard, board.ID, strings.Join(missing, ", "))
	}
	return board, nil
}
