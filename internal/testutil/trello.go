package testutil

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// FakeCard is a card held by FakeTrello.
type FakeCard struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	IDList   string `json:"idList"`
	IDBoard  string `json:"idBoard"`
	Closed   bool   `json:"closed"`
	ShortURL string `json:"shortUrl"`
}

// FakeList is a list held by FakeTrello.
type FakeList struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Closed  bool   `json:"closed"`
	IDBoard string `json:"idBoard"`
}

// FakeTrello is an in-memory Trello API serving a single board.
type FakeTrello struct {
	*server

	Key     string
	Token   string
	BoardID string

	mu     sync.Mutex
	closed bool
	lists  []FakeList
	cards  map[string]*FakeCard
	nextID int
}

// NewFakeTrello starts a fake Trello API for boardID with the given lists.
func NewFakeTrello(key, token, boardID string, listIDs ...string) *FakeTrello {
	f := &FakeTrello{
		Key:     key,
		Token:   token,
		BoardID: boardID,
		cards:   make(map[string]*FakeCard),
	}
	for _, id := range listIDs {
		f.lists = append(f.lists, FakeList{ID: id, Name: "List " + id, IDBoard: boardID})
	}
	f.server = newServer(f.route)
	return f
}

// AddCard stores a card and returns its ID. An empty ID is generated.
func (f *FakeTrello) AddCard(c FakeCard) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		f.nextID++
		c.ID = fmt.Sprintf("card%04d", f.nextID)
	}
	if c.IDBoard == "" {
		c.IDBoard = f.BoardID
	}
	c.ShortURL = "https://trello.test/c/" + c.ID
	f.cards[c.ID] = &c
	return c.ID
}

// Card returns a copy of a stored card.
func (f *FakeTrello) Card(id string) (FakeCard, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return FakeCard{}, false
	}
	return *c, true
}

// Cards returns copies of all stored cards ordered by ID.
func (f *FakeTrello) Cards() []FakeCard {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedCards()
}

// DeleteCard removes a card, as if deleted by a user.
func (f *FakeTrello) DeleteCard(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cards, id)
}

// MoveCard changes a card's list, as if dragged by a user.
func (f *FakeTrello) MoveCard(id, listID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cards[id]; ok {
		c.IDList = listID
	}
}

// SetBoardClosed marks the board closed.
func (f *FakeTrello) SetBoardClosed(closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = closed
}

func (f *FakeTrello) sortedCards() []FakeCard {
	ids := make([]string, 0, len(f.cards))
	for id := range f.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]FakeCard, 0, len(ids))
	for _, id := range ids {
		out = append(out, *f.cards[id])
	}
	return out
}

func (f *FakeTrello) route(w http.ResponseWriter, r *http.Request, _ []byte) {
	q := r.URL.Query()
	if q.Get("key") != f.Key || q.Get("token") != f.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid key"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "boards":
		if parts[1] != f.BoardID {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "board not found"})
			return
		}
		switch {
		case len(parts) == 2 && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"id": f.BoardID, "name": "Fake board", "closed": f.closed, "url": "https://trello.test/b/" + f.BoardID,
			})
		case len(parts) == 3 && parts[2] == "lists" && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, f.lists)
		case len(parts) == 3 && parts[2] == "cards" && r.Method == http.MethodGet:
			open := []FakeCard{}
			for _, c := range f.sortedCards() {
				if !c.Closed {
					open = append(open, c)
				}
			}
			writeJSON(w, http.StatusOK, open)
		default:
			http.NotFound(w, r)
		}

	case len(parts) == 1 && parts[0] == "cards" && r.Method == http.MethodPost:
		if q.Get("idList") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid value for idList"})
			return
		}
		f.nextID++
		c := &FakeCard{
			ID:      fmt.Sprintf("card%04d", f.nextID),
			Name:    q.Get("name"),
			Desc:    q.Get("desc"),
			IDList:  q.Get("idList"),
			IDBoard: f.BoardID,
		}
		c.ShortURL = "https://trello.test/c/" + c.ID
		f.cards[c.ID] = c
		writeJSON(w, http.StatusOK, c)

	case len(parts) == 2 && parts[0] == "cards":
		c, ok := f.cards[parts[1]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "card not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, c)
		case http.MethodPut:
			if q.Has("name") {
				c.Name = q.Get("name")
			}
			if q.Has("desc") {
				c.Desc = q.Get("desc")
			}
			if q.Has("idList") {
				c.IDList = q.Get("idList")
			}
			writeJSON(w, http.StatusOK, c)
		default:
			http.NotFound(w, r)
		}

	default:
		http.NotFound(w, r)
	}
}
