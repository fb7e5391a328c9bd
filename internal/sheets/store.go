// Package sheets implements the lead record store on top of a Google Sheets
// range. Columns A..F of the range hold external_id, display_name, email,
// status, origin and task_ref; the first row of the range is a header.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/steveyegge/leadsync/internal/tracker"
	"github.com/steveyegge/leadsync/internal/types"
)

// DefaultRange is the range read when none is configured.
const DefaultRange = "Leads!A:F"

// Column offsets within the range.
const (
	colExternalID = iota
	colDisplayName
	colEmail
	colStatus
	colOrigin
	colTaskRef
	numColumns
)

const valueInputRaw = "RAW"

// Store reads and writes lead rows in one spreadsheet range.
type Store struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	readRange     string
	sheet         string
	firstCol      int
}

var (
	_ tracker.RecordStore    = (*Store)(nil)
	_ tracker.RecordAppender = (*Store)(nil)
)

// New creates a Store. opts are passed to the Sheets client, e.g.
// option.WithCredentialsFile.
func New(ctx context.Context, spreadsheetID, readRange string, opts ...option.ClientOption) (*Store, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet ID is required")
	}
	if readRange == "" {
		readRange = DefaultRange
	}
	sheet, col, _, err := parseA1(readRange)
	if err != nil {
		return nil, err
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		sheet:         sheet,
		firstCol:      col,
	}, nil
}

// CredentialsOption authenticates with a service account key file.
func CredentialsOption(path string) option.ClientOption {
	return option.WithCredentialsFile(path)
}

// ScopeOption requests read-write access to spreadsheets.
func ScopeOption() option.ClientOption {
	return option.WithScopes(sheetsapi.SpreadsheetsScope)
}

// ListRecords reads every data row of the range. Short rows are padded with
// empty cells.
func (s *Store) ListRecords(ctx context.Context) ([]types.Record, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("read range "+s.readRange, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	startRow := 1
	if resp.Range != "" {
		if _, _, row, err := parseA1(resp.Range); err == nil && row > 0 {
			startRow = row
		}
	}

	records := make([]types.Record, 0, len(resp.Values)-1)
	for i, row := range resp.Values[1:] {
		cells := make([]string, numColumns)
		for j := 0; j < numColumns && j < len(row); j++ {
			cells[j] = cellString(row[j])
		}
		records = append(records, types.Record{
			Position:    startRow + 1 + i,
			ExternalID:  cells[colExternalID],
			DisplayName: cells[colDisplayName],
			Email:       cells[colEmail],
			Status:      cells[colStatus],
			Origin:      cells[colOrigin],
			TaskRef:     cells[colTaskRef],
		})
	}
	return records, nil
}

// UpdateRecord writes the status and task_ref cells of the row at position
// in a single request. Other cells are never touched.
func (s *Store) UpdateRecord(ctx context.Context, position int, update types.RecordUpdate) error {
	if position < 1 {
		return fmt.Errorf("invalid row %d", position)
	}
	if update.IsEmpty() {
		return nil
	}
	var data []*sheetsapi.ValueRange
	if update.Status != nil {
		data = append(data, s.cell(position, colStatus, *update.Status))
	}
	if update.TaskRef != nil {
		data = append(data, s.cell(position, colTaskRef, *update.TaskRef))
	}
	req := &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: valueInputRaw,
		Data:             data,
	}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return wrapErr(fmt.Sprintf("update row %d", position), err)
	}
	return nil
}

// AppendRecord adds a lead row after the last row of the range and returns
// its position.
func (s *Store) AppendRecord(ctx context.Context, lead types.NewLead) (int, error) {
	if strings.TrimSpace(lead.ExternalID) == "" || strings.TrimSpace(lead.DisplayName) == "" {
		return 0, errors.New("lead needs an id and a name")
	}
	vr := &sheetsapi.ValueRange{
		Values: [][]interface{}{{lead.ExternalID, lead.DisplayName, lead.Email, lead.Status, lead.Origin, ""}},
	}
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.readRange, vr).
		ValueInputOption(valueInputRaw).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, wrapErr("append row", err)
	}
	if resp.Updates == nil || resp.Updates.UpdatedRange == "" {
		return 0, errors.New("append row: response has no updated range")
	}
	_, _, row, err := parseA1(resp.Updates.UpdatedRange)
	if err != nil {
		return 0, fmt.Errorf("append row: %w", err)
	}
	return row, nil
}

func (s *Store) cell(row, offset int, value string) *sheetsapi.ValueRange {
	return &sheetsapi.ValueRange{
		Range:  fmt.Sprintf("%s!%s%d", quoteSheet(s.sheet), columnName(s.firstCol+offset), row),
		Values: [][]interface{}{{value}},
	}
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// APIError is a Sheets API failure carrying its HTTP status.
type APIError struct {
	Op   string
	Code int
	Err  error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets: %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.Code }

func wrapErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{Op: op, Code: gerr.Code, Err: err}
	}
	return fmt.Errorf("sheets: %s: %w", op, err)
}
