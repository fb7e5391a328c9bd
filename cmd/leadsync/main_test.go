package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/steveyegge/leadsync/internal/config"
	"github.com/steveyegge/leadsync/internal/telemetry"
	"github.com/steveyegge/leadsync/internal/testutil"
	"github.com/steveyegge/leadsync/internal/tracker"
)

const (
	testKey   = "k"
	testToken = "t"
	testBoard = "board-1"
)

var sheetHeader = []string{"id", "name", "email", "status", "source", "trello_task_id"}

type env struct {
	sheet   *testutil.FakeSheets
	trello  *testutil.FakeTrello
	envFile string
}

// newEnv starts both fakes, points the CLI at them and sets every required
// setting. rows are the sheet's data rows, below the header.
func newEnv(t *testing.T, rows ...[]string) *env {
	t.Helper()
	dir := t.TempDir()
	creds := filepath.Join(dir, "sa.json")
	require.NoError(t, os.WriteFile(creds, []byte("{}"), 0o600))

	e := &env{
		sheet:   testutil.NewFakeSheets("sheet-1", "Leads", append([][]string{sheetHeader}, rows...)...),
		trello:  testutil.NewFakeTrello(testKey, testToken, testBoard, "l-new", "l-contacted", "l-qualified", "l-lost"),
		envFile: filepath.Join(dir, "missing.env"),
	}
	t.Cleanup(e.sheet.Close)
	t.Cleanup(e.trello.Close)

	prevURL, prevOpts := trelloBaseURL, sheetsOptions
	trelloBaseURL = e.trello.URL()
	sheetsOptions = func(*config.Config) []option.ClientOption {
		return []option.ClientOption{option.WithEndpoint(e.sheet.Endpoint()), option.WithoutAuthentication()}
	}
	t.Cleanup(func() { trelloBaseURL, sheetsOptions = prevURL, prevOpts })

	for k, v := range map[string]string{
		config.KeyCredsPath:      creds,
		config.KeySheetID:        "sheet-1",
		config.KeySheetRange:     "Leads!A:F",
		config.KeyTrelloKey:      testKey,
		config.KeyTrelloToken:    testToken,
		config.KeyBoardID:        testBoard,
		config.KeyListTodo:       "l-new",
		config.KeyListInProgress: "l-contacted",
		config.KeyListDone:       "l-qualified",
		config.KeyListLost:       "l-lost",
		config.KeyLogLevel:       "ERROR",
		config.KeyFileLogging:    "false",
		config.KeyRetryMax:       "2",
		config.KeyRetryBaseDelay: "1ms",
		config.KeyRetryFactor:    "2",
		config.KeyHTTPTimeout:    "5s",
		config.KeyOTelEnabled:    "false",
		config.KeyOTelStdout:     "",
		config.KeyOTLPEndpoint:   "",

		config.KeyOTLPMetricsEndpoint: "",
	} {
		t.Setenv(k, v)
	}
	return e
}

func (e *env) app(t *testing.T) *app {
	t.Helper()
	a, err := newApp(e.envFile, false, io.Discard)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestTelemetryOptionsFromEnvFile(t *testing.T) {
	e := newEnv(t)
	t.Setenv(config.KeyOTelEnabled, "")
	require.NoError(t, os.WriteFile(e.envFile,
		[]byte("LEADSYNC_OTEL_ENABLED=true\nOTEL_EXPORTER_OTLP_ENDPOINT=http://collector:4318\n"), 0o600))

	assert.Equal(t, telemetry.Options{
		Enabled:         true,
		MetricsEndpoint: "http://collector:4318",
		ServiceName:     "leadsync",
		Version:         Version,
	}, e.app(t).telemetryOptions())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"canceled", context.Canceled, exitInterrupted},
		{"wrapped canceled", fmt.Errorf("listing: %w", context.Canceled), exitInterrupted},
		{"reported failure", &exitError{code: exitFailure}, exitFailure},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, &exitError{code: exitFailure, err: errors.New("configuration error: x"), hint: "set it"})
	assert.Equal(t, "Error: configuration error: x\nHint: set it\n", buf.String())

	buf.Reset()
	reportError(&buf, &exitError{code: exitFailure})
	assert.Empty(t, buf.String())

	buf.Reset()
	reportError(&buf, context.Canceled)
	assert.Equal(t, "Interrupted\n", buf.String())
}

func TestNewAppConfigFailure(t *testing.T) {
	e := newEnv(t)
	t.Setenv(config.KeyTrelloToken, "")
	t.Setenv(config.KeyBoardID, "")

	_, err := newApp(e.envFile, false, io.Discard)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Contains(t, ee.hint, ".env.example")
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{config.KeyTrelloToken, config.KeyBoardID}, verr.Missing)
}

func TestRunSyncCreatesCardAndIsIdempotent(t *testing.T) {
	e := newEnv(t, []string{"L-1", "John Doe", "john@example.com", "new", "Website", ""})
	a := e.app(t)
	opts := syncOptions{Direction: tracker.DirectionBoth}

	var out bytes.Buffer
	require.NoError(t, runSync(context.Background(), a, opts, &out))
	assert.Contains(t, out.String(), "SYNC REPORT")
	assert.Contains(t, out.String(), "Tasks created:             1")

	cards := e.trello.Cards()
	require.Len(t, cards, 1)
	assert.Equal(t, "John Doe", cards[0].Name)
	assert.Equal(t, "l-new", cards[0].IDList)
	assert.Equal(t, tracker.FormatTaskBody("john@example.com", "Website", "L-1"), cards[0].Desc)
	assert.Equal(t, cards[0].ID, e.sheet.Cell(2, 5))

	out.Reset()
	require.NoError(t, runSync(context.Background(), a, opts, &out))
	assert.Len(t, e.trello.Cards(), 1)
	assert.Contains(t, out.String(), "Tasks created:             0")
	assert.Contains(t, out.String(), "Total operations:          0")
}

func TestRunSyncPushesBoardStatusToSheet(t *testing.T) {
	e := newEnv(t)
	id := e.trello.AddCard(testutil.FakeCard{
		Name:   "Jane Roe",
		Desc:   tracker.FormatTaskBody("", "", "L-2"),
		IDList: "l-qualified",
	})
	e.sheet.SetCell(2, 0, "L-2")
	e.sheet.SetCell(2, 1, "Jane Roe")
	e.sheet.SetCell(2, 3, "new")
	e.sheet.SetCell(2, 5, id)

	var out bytes.Buffer
	require.NoError(t, runSync(context.Background(), e.app(t), syncOptions{Direction: tracker.DirectionBoth, JSON: true}, &out))

	assert.Equal(t, "QUALIFIED", e.sheet.Cell(2, 3))
	card, ok := e.trello.Card(id)
	require.True(t, ok)
	assert.Equal(t, "l-qualified", card.IDList, "board position must survive the same run")

	var stats tracker.RunStatistics
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, 1, stats.StatusesPushed)
	assert.Equal(t, 0, stats.TasksUpdated)
	assert.Equal(t, 0, stats.Errors)
}

func TestRunSyncCountsErrorsAndExitsOne(t *testing.T) {
	e := newEnv(t,
		[]string{"L-1", "Ann", "", "new", "", ""},
		[]string{"L-2", "Bob", "", "contacted", "", ""},
	)
	e.trello.InjectFault(testutil.Fault{Method: http.MethodPost, PathSuffix: "/cards", Status: http.StatusUnauthorized, Count: 1})

	var out bytes.Buffer
	err := runSync(context.Background(), e.app(t), syncOptions{Direction: tracker.DirectionLeadsToTasks, JSON: true}, &out)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))

	var stats tracker.RunStatistics
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.TasksCreated)
	assert.Equal(t, 2, e.trello.CountRequests(http.MethodPost, "/cards"), "401 must not be retried")
	assert.Len(t, e.trello.Cards(), 1)
}

func TestRunSyncRetriesTransientFailures(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "", "", ""})
	e.trello.InjectFault(testutil.Fault{Method: http.MethodPost, PathSuffix: "/cards", Status: http.StatusServiceUnavailable, Count: 2})

	var out bytes.Buffer
	require.NoError(t, runSync(context.Background(), e.app(t), syncOptions{Direction: tracker.DirectionLeadsToTasks}, &out))
	assert.Equal(t, 3, e.trello.CountRequests(http.MethodPost, "/cards"))
	assert.Len(t, e.trello.Cards(), 1)
}

func TestRunSyncClosedBoardFailsBeforeSync(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "", "", ""})
	e.trello.SetBoardClosed(true)

	var out bytes.Buffer
	err := runSync(context.Background(), e.app(t), syncOptions{Direction: tracker.DirectionBoth}, &out)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, err.Error(), "closed")
	assert.Empty(t, out.String())
	assert.Zero(t, e.sheet.CountRequests("", ""))
}

func TestRunSyncRetriesBoardCheck(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "", "", ""})
	e.trello.InjectFault(testutil.Fault{Method: http.MethodGet, PathSuffix: "/boards/" + testBoard, Status: http.StatusServiceUnavailable, Count: 1})

	var out bytes.Buffer
	require.NoError(t, runSync(context.Background(), e.app(t), syncOptions{Direction: tracker.DirectionLeadsToTasks}, &out))
	assert.Equal(t, 2, e.trello.CountRequests(http.MethodGet, "/boards/"+testBoard))
	assert.Len(t, e.trello.Cards(), 1)
}

func TestRunSyncClosedBoardIsNotRetried(t *testing.T) {
	e := newEnv(t)
	e.trello.SetBoardClosed(true)

	err := runSync(context.Background(), e.app(t), syncOptions{Direction: tracker.DirectionBoth}, io.Discard)
	require.Error(t, err)
	assert.Equal(t, 1, e.trello.CountRequests(http.MethodGet, "/boards/"+testBoard))
}

func TestRunSyncDryRunMakesNoRequests(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "", "", ""})

	var out bytes.Buffer
	require.NoError(t, runSync(context.Background(), e.app(t), syncOptions{Direction: tracker.DirectionBoth, DryRun: true}, &out))
	assert.Empty(t, out.String())
	assert.Zero(t, e.trello.CountRequests("", ""))
	assert.Zero(t, e.sheet.CountRequests("", ""))
}

func TestRunSyncInterruptedBeforeStart(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "", "", ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runSync(ctx, e.app(t), syncOptions{Direction: tracker.DirectionBoth}, io.Discard)
	assert.Equal(t, exitInterrupted, exitCode(err))
	assert.Empty(t, e.trello.Cards())
}

func TestNewLead(t *testing.T) {
	lead, err := newLead("", "  Ann  ", "ann@example.com", "in progress", "Referral")
	require.NoError(t, err)
	assert.Regexp(t, `^L-[0-9A-F]{8}$`, lead.ExternalID)
	assert.Equal(t, "Ann", lead.DisplayName)
	assert.Equal(t, "CONTACTED", lead.Status)

	lead, err = newLead("L-9", "Bob", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "L-9", lead.ExternalID)
	assert.Equal(t, "NEW", lead.Status)

	_, err = newLead("L-9", " ", "", "", "")
	assert.Error(t, err)
}

// execute runs the root command with args, resetting flag state first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envFile, verboseFlag, jsonOutput = ".env", false, false
	syncDirection, syncDryRun, syncRelink, syncInterval = string(tracker.DirectionBoth), false, false, 0
	statusCheck = false
	addLeadID, addLeadName, addLeadEmail, addLeadStatus, addLeadSource = "", "", "", "new", ""

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRejectsUnknownDirection(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "--env-file", e.envFile, "--direction", "sideways")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, err.Error(), "invalid direction")
	assert.Zero(t, e.trello.CountRequests("", ""))
}

func TestRootTasksToLeadsOnly(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "", "", ""})
	out, err := execute(t, "--env-file", e.envFile, "--direction", "tasks-to-leads")
	require.NoError(t, err)
	assert.Contains(t, out, "Direction:                 tasks-to-leads")
	assert.Empty(t, e.trello.Cards(), "tasks-to-leads must not create cards")
}

func TestAddLeadCommand(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "NEW", "", ""})
	out, err := execute(t, "add-lead", "--env-file", e.envFile,
		"--id", "L-2", "--name", "Bob", "--email", "bob@example.com", "--status", "won", "--source", "Fair")
	require.NoError(t, err)
	assert.Equal(t, "Added lead L-2 (Bob) at row 3\n", out)
	assert.Equal(t, []string{"L-2", "Bob", "bob@example.com", "QUALIFIED", "Fair", ""}, e.sheet.Row(3)[:6])
}

func TestAddLeadRetriesTransientAppendFailure(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "NEW", "", ""})
	e.sheet.InjectFault(testutil.Fault{Method: http.MethodPost, PathSuffix: ":append", Status: http.StatusServiceUnavailable, Count: 1})

	out, err := execute(t, "add-lead", "--env-file", e.envFile, "--id", "L-2", "--name", "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Added lead L-2 (Bob) at row 3\n", out)
	assert.GreaterOrEqual(t, e.sheet.CountRequests(http.MethodPost, ":append"), 2)
	assert.Equal(t, 3, e.sheet.RowCount())
}

func TestStatusCommand(t *testing.T) {
	e := newEnv(t, []string{"L-1", "Ann", "", "NEW", "", "card-x"})

	out, err := execute(t, "status", "--env-file", e.envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "CONFIGURATION")
	assert.Contains(t, out, config.KeyTrelloToken+": ****")
	assert.Zero(t, e.trello.CountRequests("", ""))

	out, err = execute(t, "status", "--check", "--env-file", e.envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "CONNECTIVITY")
	assert.Contains(t, out, "Fake board (4 lists mapped)")
	assert.Contains(t, out, "1 leads, 1 linked to cards")
	assert.Contains(t, out, "all checks passed")
}

func TestStatusCommandReportsMissingLists(t *testing.T) {
	e := newEnv(t)
	t.Setenv(config.KeyListLost, "l-gone")

	out, err := execute(t, "status", "--check", "--env-file", e.envFile)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, out, "l-gone")
	assert.Contains(t, out, "1 check(s) failed")
}
