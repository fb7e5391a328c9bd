package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// FakeSheets is an in-memory Google Sheets values API holding one sheet of
// one spreadsheet. Rows are stored as written, header row included.
type FakeSheets struct {
	*server

	SpreadsheetID string
	SheetName     string

	mu   sync.Mutex
	rows [][]string
}

// NewFakeSheets starts a fake Sheets API. rows[0] is sheet row 1.
func NewFakeSheets(spreadsheetID, sheetName string, rows ...[]string) *FakeSheets {
	f := &FakeSheets{
		SpreadsheetID: spreadsheetID,
		SheetName:     sheetName,
	}
	for _, r := range rows {
		f.rows = append(f.rows, append([]string(nil), r...))
	}
	f.server = newServer(f.route)
	return f
}

// Endpoint is the base path to pass to option.WithEndpoint.
func (f *FakeSheets) Endpoint() string {
	return f.URL() + "/"
}

// Row returns a copy of sheet row n (1-based).
func (f *FakeSheets) Row(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 1 || n > len(f.rows) {
		return nil
	}
	return append([]string(nil), f.rows[n-1]...)
}

// Cell returns the value at column col (0-based) of sheet row n (1-based).
func (f *FakeSheets) Cell(n, col int) string {
	row := f.Row(n)
	if col < len(row) {
		return row[col]
	}
	return ""
}

// SetCell writes a value, as if edited by a user.
func (f *FakeSheets) SetCell(n, col int, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCell(n, col, value)
}

// RowCount returns the number of stored rows, header included.
func (f *FakeSheets) RowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *FakeSheets) setCell(n, col int, value string) {
	for len(f.rows) < n {
		f.rows = append(f.rows, nil)
	}
	row := f.rows[n-1]
	for len(row) <= col {
		row = append(row, "")
	}
	row[col] = value
	f.rows[n-1] = row
}

type valueRange struct {
	Range          string          `json:"range,omitempty"`
	MajorDimension string          `json:"majorDimension,omitempty"`
	Values         [][]interface{} `json:"values,omitempty"`
}

func (f *FakeSheets) route(w http.ResponseWriter, r *http.Request, body []byte) {
	prefix := "/v4/spreadsheets/" + f.SpreadsheetID + "/values"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeJSON(w, http.StatusNotFound, apiError(http.StatusNotFound, "Requested entity was not found."))
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case rest == ":batchUpdate" && r.Method == http.MethodPost:
		f.batchUpdate(w, body)
	case strings.HasSuffix(rest, ":append") && r.Method == http.MethodPost:
		f.appendRows(w, strings.TrimSuffix(strings.TrimPrefix(rest, "/"), ":append"), body)
	case strings.HasPrefix(rest, "/") && r.Method == http.MethodGet:
		f.get(w, strings.TrimPrefix(rest, "/"))
	default:
		writeJSON(w, http.StatusNotFound, apiError(http.StatusNotFound, "unsupported request"))
	}
}

func (f *FakeSheets) get(w http.ResponseWriter, rng string) {
	sheet, col, row, err := parseCell(rng)
	if err != nil || sheet != f.SheetName {
		writeJSON(w, http.StatusBadRequest, apiError(http.StatusBadRequest, "Unable to parse range: "+rng))
		return
	}
	if row < 1 {
		row = 1
	}
	resp := valueRange{MajorDimension: "ROWS"}
	last := len(f.rows)
	for n := row; n <= last; n++ {
		var cells []interface{}
		src := f.rows[n-1]
		if col < len(src) {
			src = src[col:]
		} else {
			src = nil
		}
		end := len(src)
		for end > 0 && src[end-1] == "" {
			end--
		}
		for _, v := range src[:end] {
			cells = append(cells, v)
		}
		resp.Values = append(resp.Values, cells)
	}
	for len(resp.Values) > 0 && len(resp.Values[len(resp.Values)-1]) == 0 {
		resp.Values = resp.Values[:len(resp.Values)-1]
		last--
	}
	if last < row {
		last = row
	}
	resp.Range = fmt.Sprintf("%s!%s%d:F%d", f.SheetName, columnName(col), row, last)
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeSheets) batchUpdate(w http.ResponseWriter, body []byte) {
	var req struct {
		ValueInputOption string       `json:"valueInputOption"`
		Data             []valueRange `json:"data"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError(http.StatusBadRequest, err.Error()))
		return
	}
	cells := 0
	for _, d := range req.Data {
		sheet, col, row, err := parseCell(d.Range)
		if err != nil || sheet != f.SheetName || row < 1 {
			writeJSON(w, http.StatusBadRequest, apiError(http.StatusBadRequest, "Unable to parse range: "+d.Range))
			return
		}
		for i, vals := range d.Values {
			for j, v := range vals {
				f.setCell(row+i, col+j, fmt.Sprint(v))
				cells++
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spreadsheetId":     f.SpreadsheetID,
		"totalUpdatedCells": cells,
	})
}

func (f *FakeSheets) appendRows(w http.ResponseWriter, rng string, body []byte) {
	sheet, col, _, err := parseCell(rng)
	if err != nil || sheet != f.SheetName {
		writeJSON(w, http.StatusBadRequest, apiError(http.StatusBadRequest, "Unable to parse range: "+rng))
		return
	}
	var req valueRange
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError(http.StatusBadRequest, err.Error()))
		return
	}
	first := len(f.rows) + 1
	for i, vals := range req.Values {
		for j, v := range vals {
			f.setCell(first+i, col+j, fmt.Sprint(v))
		}
	}
	lastRow := first + len(req.Values) - 1
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spreadsheetId": f.SpreadsheetID,
		"tableRange":    fmt.Sprintf("%s!A1:F%d", f.SheetName, first-1),
		"updates": map[string]interface{}{
			"spreadsheetId": f.SpreadsheetID,
			"updatedRange":  fmt.Sprintf("%s!%s%d:F%d", f.SheetName, columnName(col), first, lastRow),
			"updatedRows":   len(req.Values),
		},
	})
}

func apiError(code int, msg string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": msg,
			"status":  strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_")),
		},
	}
}

// parseCell reads the sheet name and the top-left cell of an A1 range.
// A missing row number yields row 0.
func parseCell(rng string) (sheet string, col, row int, err error) {
	i := strings.LastIndex(rng, "!")
	if i < 0 {
		return "", 0, 0, fmt.Errorf("range %q has no sheet", rng)
	}
	sheet = strings.Trim(rng[:i], "'")
	cell := rng[i+1:]
	if j := strings.Index(cell, ":"); j >= 0 {
		cell = cell[:j]
	}
	k := 0
	for k < len(cell) && cell[k] >= 'A' && cell[k] <= 'Z' {
		col = col*26 + int(cell[k]-'A'+1)
		k++
	}
	if k == 0 {
		return "", 0, 0, fmt.Errorf("range %q has no column", rng)
	}
	col--
	if k < len(cell) {
		row, err = strconv.Atoi(cell[k:])
		if err != nil {
			return "", 0, 0, fmt.Errorf("range %q: %w", rng, err)
		}
	}
	return sheet, col, row, nil
}

func columnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
