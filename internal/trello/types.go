package trello

import (
	"fmt"
	"time"
)

// Board is the subset of a Trello board the sync reads.
type Board struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
	URL    string `json:"url"`
}

// List is a column on a board.
type List struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Closed  bool   `json:"closed"`
	IDBoard string `json:"idBoard"`
}

// Card is a Trello card.
type Card struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Desc             string     `json:"desc"`
	IDList           string     `json:"idList"`
	IDBoard          string     `json:"idBoard"`
	Closed           bool       `json:"closed"`
	ShortURL         string     `json:"shortUrl"`
	DateLastActivity *time.Time `json:"dateLastActivity,omitempty"`
}

// CardCreate holds the fields of a card to create.
type CardCreate struct {
	Name   string
	Desc   string
	IDList string
}

// CardUpdate is a partial card update. Nil fields are not sent.
type CardUpdate struct {
	Name   *string
	Desc   *string
	IDList *string
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trello API error: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// StatusCode returns the HTTP status of the failed response.
func (e *APIError) StatusCode() int {
	return e.Status
}
