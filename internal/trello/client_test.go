package trello

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/steveyegge/leadsync/internal/testutil"
	"github.com/steveyegge/leadsync/internal/types"
)

func newTestClient(fake *testutil.FakeTrello) *Client {
	c := NewClient(fake.Key, fake.Token).WithBoardID(fake.BoardID)
	c.BaseURL = fake.URL()
	return c
}

func TestNewClient(t *testing.T) {
	c := NewClient("k", "t")
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
	if c.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v", c.HTTPClient.Timeout)
	}
	b := c.WithBoardID("board-1")
	if b.BoardID != "board-1" || b.Key != "k" || b.Token != "t" {
		t.Errorf("WithBoardID = %+v", b)
	}
	if c.BoardID != "" {
		t.Error("WithBoardID should not modify the original client")
	}
}

func TestCreateAndGetCard(t *testing.T) {
	fake := testutil.NewFakeTrello("k", "t", "b1", "todo", "done")
	defer fake.Close()
	c := newTestClient(fake)
	ctx := context.Background()

	card, err := c.CreateCard(ctx, CardCreate{Name: "John Doe", Desc: "lead_id: L1", IDList: "todo"})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	if card.ID == "" || card.IDList != "todo" {
		t.Fatalf("card = %+v", card)
	}

	got, err := c.GetCard(ctx, card.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got == nil || got.Name != "John Doe" || got.Desc != "lead_id: L1" {
		t.Errorf("GetCard = %+v", got)
	}

	reqs := fake.Requests()
	for _, r := range reqs {
		if r.Query["key"][0] != "k" || r.Query["token"][0] != "t" {
			t.Errorf("request %s %s missing auth params", r.Method, r.Path)
		}
	}
}

func TestGetCardNotFound(t *testing.T) {
	fake := testutil.NewFakeTrello("k", "t", "b1", "todo")
	defer fake.Close()
	c := newTestClient(fake)

	card, err := c.GetCard(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if card != nil {
		t.Errorf("expected nil card, got %+v", card)
	}
}

func TestUpdateCardSendsOnlySetFields(t *testing.T) {
	fake := testutil.NewFakeTrello("k", "t", "b1", "todo", "done")
	defer fake.Close()
	id := fake.AddCard(testutil.FakeCard{Name: "Old", Desc: "keep", IDList: "todo"})
	c := newTestClient(fake)

	list := "done"
	card, err := c.UpdateCard(context.Background(), id, CardUpdate{IDList: &list})
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if card.IDList != "done" || card.Name != "Old" || card.Desc != "keep" {
		t.Errorf("card = %+v", card)
	}
	reqs := fake.Requests()
	last := reqs[len(reqs)-1]
	if _, ok := last.Query["name"]; ok {
		t.Error("name should not be sent when unchanged")
	}
}

func TestAPIErrorStatus(t *testing.T) {
	fake := testutil.NewFakeTrello("k", "t", "b1", "todo")
	defer fake.Close()
	c := newTestClient(fake)
	c.Token = "wrong"

	_, err := c.ListCards(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode() != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode())
	}
}

func TestRequireBoard(t *testing.T) {
	c := NewClient("k", "t")
	if _, err := c.ListCards(context.Background()); err == nil {
		t.Error("expected error without board ID")
	}
}

func TestTaskBoardAdapter(t *testing.T) {
	fake := testutil.NewFakeTrello("k", "t", "b1", "todo", "done")
	defer fake.Close()
	fake.AddCard(testutil.FakeCard{ID: "c1", Name: "Open", Desc: "lead_id: L1\n🆔 Lead ID: L1", IDList: "todo"})
	fake.AddCard(testutil.FakeCard{ID: "c2", Name: "Archived", IDList: "done", Closed: true})
	fake.AddCard(testutil.FakeCard{ID: "c3", Name: "Elsewhere", IDList: "x", IDBoard: "other"})
	b := NewTaskBoard(newTestClient(fake))
	ctx := context.Background()

	tasks, err := b.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("ListTasks = %d tasks, want 2 open cards", len(tasks))
	}

	if task, err := b.GetTask(ctx, "c2"); err != nil || task != nil {
		t.Errorf("archived card: task=%v err=%v, want not found", task, err)
	}
	if task, err := b.GetTask(ctx, "c3"); err != nil || task != nil {
		t.Errorf("card on another board: task=%v err=%v, want not found", task, err)
	}

	found, err := b.FindTaskByLeadID(ctx, "L1")
	if err != nil || found == nil || found.ID != "c1" {
		t.Errorf("FindTaskByLeadID = %+v, %v", found, err)
	}

	title := "Renamed"
	updated, err := b.UpdateTask(ctx, "c1", types.TaskUpdate{Title: &title})
	if err != nil || updated.Title != "Renamed" {
		t.Errorf("UpdateTask = %+v, %v", updated, err)
	}
}

func TestValidate(t *testing.T) {
	fake := testutil.NewFakeTrello("k", "t", "b1", "todo", "done")
	defer fake.Close()
	b := NewTaskBoard(newTestClient(fake))
	ctx := context.Background()

	if _, err := b.Validate(ctx, []string{"todo", "done"}); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if _, err := b.Validate(ctx, []string{"todo", "lost"}); !errors.Is(err, ErrInvalidBoard) {
		t.Errorf("missing list: err = %v, want ErrInvalidBoard", err)
	}
	fake.SetBoardClosed(true)
	if _, err := b.Validate(ctx, nil); !errors.Is(err, ErrInvalidBoard) {
		t.Errorf("closed board: err = %v, want ErrInvalidBoard", err)
	}

	fake.SetBoardClosed(false)
	fake.InjectFault(testutil.Fault{Method: http.MethodGet, PathSuffix: "/boards/b1", Status: http.StatusServiceUnavailable, Count: 1})
	_, err := b.Validate(ctx, nil)
	if err == nil || errors.Is(err, ErrInvalidBoard) {
		t.Errorf("unreachable board: err = %v, want a transport error", err)
	}
}
