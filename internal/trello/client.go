package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.trello.com/1"
	DefaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 512
)

// Client provides methods to interact with the Trello REST API.
// Retries are left to the caller.
type Client struct {
	BaseURL    string
	Key        string
	Token      string
	BoardID    string
	HTTPClient *http.Client
}

// NewClient creates a new Trello client.
func NewClient(key, token string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		Key:     key,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBoardID returns a new client configured for a specific board.
func (c *Client) WithBoardID(boardID string) *Client {
	return &Client{
		BaseURL:    c.BaseURL,
		Key:        c.Key,
		Token:      c.Token,
		BoardID:    boardID,
		HTTPClient: c.HTTPClient,
	}
}

// WithTimeout returns a new client whose HTTP client uses timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	return &Client{
		BaseURL:    c.BaseURL,
		Key:        c.Key,
		Token:      c.Token,
		BoardID:    c.BoardID,
		HTTPClient: &http.Client{Timeout: timeout, Transport: c.HTTPClient.Transport},
	}
}

// request sends an HTTP request to the Trello API and decodes the JSON
// response into out when out is non-nil.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.Key)
	params.Set("token", c.Token)

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(msg)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response from %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) requireBoard() error {
	if c.BoardID == "" {
		return errors.New("board ID not configured")
	}
	return nil
}

// GetBoard fetches the configured board. Used to validate credentials.
func (c *Client) GetBoard(ctx context.Context) (*Board, error) {
	if err := c.requireBoard(); err != nil {
		return nil, err
	}
	var board Board
	params := url.Values{"fields": {"name,closed,url"}}
	if err := c.request(ctx, http.MethodGet, "/boards/"+url.PathEscape(c.BoardID), params, &board); err != nil {
		return nil, fmt.Errorf("failed to fetch board: %w", err)
	}
	return &board, nil
}

// ListLists returns the open lists on the configured board.
func (c *Client) ListLists(ctx context.Context) ([]List, error) {
	if err := c.requireBoard(); err != nil {
		return nil, err
	}
	var lists []List
	if err := c.request(ctx, http.MethodGet, "/boards/"+url.PathEscape(c.BoardID)+"/lists", nil, &lists); err != nil {
		return nil, fmt.Errorf("failed to fetch lists: %w", err)
	}
	return lists, nil
}

// ListCards returns the open cards on the configured board.
func (c *Client) ListCards(ctx context.Context) ([]Card, error) {
	if err := c.requireBoard(); err != nil {
		return nil, err
	}
	var cards []Card
	if err := c.request(ctx, http.MethodGet, "/boards/"+url.PathEscape(c.BoardID)+"/cards", nil, &cards); err != nil {
		return nil, fmt.Errorf("failed to fetch cards: %w", err)
	}
	return cards, nil
}

// GetCard fetches a card by ID. Returns nil, nil if the card doesn't exist.
func (c *Client) GetCard(ctx context.Context, id string) (*Card, error) {
	var card Card
	err := c.request(ctx, http.MethodGet, "/cards/"+url.PathEscape(id), nil, &card)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch card %s: %w", id, err)
	}
	return &card, nil
}

// CreateCard creates a card.
func (c *Client) CreateCard(ctx context.Context, create CardCreate) (*Card, error) {
	if create.IDList == "" {
		return nil, errors.New("list ID is required to create a card")
	}
	params := url.Values{
		"name":   {create.Name},
		"desc":   {create.Desc},
		"idList": {create.IDList},
		"pos":    {"bottom"},
	}
	var card Card
	if err := c.request(ctx, http.MethodPost, "/cards", params, &card); err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}
	return &card, nil
}

// UpdateCard applies a partial update to a card.
func (c *Client) UpdateCard(ctx context.Context, id string, update CardUpdate) (*Card, error) {
	params := url.Values{}
	if update.Name != nil {
		params.Set("name", *update.Name)
	}
	if update.Desc != nil {
		params.Set("desc", *update.Desc)
	}
	if update.IDList != nil {
		params.Set("idList", *update.IDList)
	}
	var card Card
	if err := c.request(ctx, http.MethodPut, "/cards/"+url.PathEscape(id), params, &card); err != nil {
		return nil, fmt.Errorf("failed to update card %s: %w", id, err)
	}
	return &card, nil
}
