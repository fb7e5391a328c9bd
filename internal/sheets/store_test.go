package sheets

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/steveyegge/leadsync/internal/retry"
	"github.com/steveyegge/leadsync/internal/testutil"
	"github.com/steveyegge/leadsync/internal/types"
)

var header = []string{"id", "name", "email", "status", "source", "trello_task_id"}

func newTestStore(t *testing.T, fake *testutil.FakeSheets, rng string) *Store {
	t.Helper()
	s, err := New(context.Background(), fake.SpreadsheetID, rng,
		option.WithEndpoint(fake.Endpoint()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return s
}

func TestListRecords(t *testing.T) {
	fake := testutil.NewFakeSheets("sheet-1", "Leads",
		header,
		[]string{"L1", "John Doe", "john@example.com", "new", "Website", ""},
		[]string{"L2", "Jane Roe"},
		[]string{"L3", "Max", "", "Done", "", "card-3"},
	)
	defer fake.Close()
	s := newTestStore(t, fake, "")

	records, err := s.ListRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, types.Record{
		Position: 2, ExternalID: "L1", DisplayName: "John Doe", Email: "john@example.com",
		Status: "new", Origin: "Website",
	}, records[0])
	assert.Equal(t, types.Record{Position: 3, ExternalID: "L2", DisplayName: "Jane Roe"}, records[1])
	assert.Equal(t, 4, records[2].Position)
	assert.Equal(t, "card-3", records[2].TaskRef)
}

func TestListRecordsEmptySheet(t *testing.T) {
	fake := testutil.NewFakeSheets("sheet-1", "Leads")
	defer fake.Close()
	s := newTestStore(t, fake, "Leads!A:F")

	records, err := s.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUpdateRecordWritesOnlyTargetCells(t *testing.T) {
	fake := testutil.NewFakeSheets("sheet-1", "Leads",
		header,
		[]string{"L1", "John Doe", "john@example.com", "new", "Website", ""},
	)
	defer fake.Close()
	s := newTestStore(t, fake, "Leads!A:F")

	status := "QUALIFIED"
	ref := "card-1"
	require.NoError(t, s.UpdateRecord(context.Background(), 2, types.RecordUpdate{Status: &status, TaskRef: &ref}))

	assert.Equal(t, []string{"L1", "John Doe", "john@example.com", "QUALIFIED", "Website", "card-1"}, fake.Row(2))
	assert.Equal(t, 1, fake.CountRequests(http.MethodPost, ":batchUpdate"))
}

func TestUpdateRecordEmptyIsNoop(t *testing.T) {
	fake := testutil.NewFakeSheets("sheet-1", "Leads", header)
	defer fake.Close()
	s := newTestStore(t, fake, "")

	require.NoError(t, s.UpdateRecord(context.Background(), 2, types.RecordUpdate{}))
	assert.Empty(t, fake.Requests())
}

func TestAppendRecord(t *testing.T) {
	fake := testutil.NewFakeSheets("sheet-1", "Leads",
		header,
		[]string{"L1", "John Doe"},
	)
	defer fake.Close()
	s := newTestStore(t, fake, "")

	row, err := s.AppendRecord(context.Background(), types.NewLead{
		ExternalID: "L2", DisplayName: "Jane Roe", Email: "jane@example.com", Status: "new", Origin: "Ads",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, row)
	assert.Equal(t, "Jane Roe", fake.Cell(3, colDisplayName))

	_, err = s.AppendRecord(context.Background(), types.NewLead{DisplayName: "No ID"})
	assert.Error(t, err)
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	fake := testutil.NewFakeSheets("sheet-1", "Leads", header)
	defer fake.Close()
	fake.InjectFault(testutil.Fault{Method: http.MethodGet, Status: http.StatusForbidden, Count: -1})
	s := newTestStore(t, fake, "")

	_, err := s.ListRecords(context.Background())
	require.Error(t, err)
	code, ok := retry.StatusCode(err)
	require.True(t, ok, "error should expose a status: %v", err)
	assert.Equal(t, http.StatusForbidden, code)
	assert.True(t, retry.TerminalStatus(err))
}

func TestParseA1(t *testing.T) {
	tests := []struct {
		in        string
		sheet     string
		col, row  int
		expectErr bool
	}{
		{"Leads!A:F", "Leads", 0, 0, false},
		{"Leads!A1:F10", "Leads", 0, 1, false},
		{"Leads!C5", "Leads", 2, 5, false},
		{"'My Leads'!B2:G", "My Leads", 1, 2, false},
		{"Sheet1!AA3", "Sheet1", 26, 3, false},
		{"A:F", "", 0, 0, true},
		{"Leads!", "", 0, 0, true},
		{"Leads!A0", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sheet, col, row, err := parseA1(tt.in)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sheet, sheet)
			assert.Equal(t, tt.col, col)
			assert.Equal(t, tt.row, row)
		})
	}
}

func TestColumnNameAndQuoting(t *testing.T) {
	assert.Equal(t, "A", columnName(0))
	assert.Equal(t, "F", columnName(5))
	assert.Equal(t, "Z", columnName(25))
	assert.Equal(t, "AA", columnName(26))
	assert.Equal(t, "Leads", quoteSheet("Leads"))
	assert.Equal(t, "'My Leads'", quoteSheet("My Leads"))
}
