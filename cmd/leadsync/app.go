package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/steveyegge/leadsync/internal/config"
	"github.com/steveyegge/leadsync/internal/logging"
	"github.com/steveyegge/leadsync/internal/retry"
	"github.com/steveyegge/leadsync/internal/sheets"
	"github.com/steveyegge/leadsync/internal/telemetry"
	"github.com/steveyegge/leadsync/internal/tracker"
	"github.com/steveyegge/leadsync/internal/trello"
)

// Endpoints used to build the backends. Tests point them at local fakes.
var (
	trelloBaseURL = trello.DefaultBaseURL
	sheetsOptions = func(cfg *config.Config) []option.ClientOption {
		return []option.ClientOption{
			sheets.CredentialsOption(cfg.CredsPath),
			sheets.ScopeOption(),
		}
	}
)

// app is the validated configuration and logger shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

// newApp loads and validates configuration and builds the logger. Config
// problems come back as an *exitError carrying a hint.
func newApp(envFile string, verbose bool, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, configFailure(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, configFailure(err)
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Verbose:     verbose,
		FileLogging: cfg.FileLogging,
		Dir:         cfg.LogDir,
		Stderr:      stderr,
	})
	if err != nil {
		return nil, &exitError{code: exitFailure, err: err}
	}
	return &app{cfg: cfg, logger: logger, closeLog: closeLog}, nil
}

func configFailure(err error) error {
	hint := "check the GOOGLE_CREDS_PATH setting and that the file exists"
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		hint = "set the missing variables in the environment or in the --env-file (see .env.example)"
	}
	return &exitError{code: exitFailure, err: fmt.Errorf("configuration error: %w", err), hint: hint}
}

func (a *app) close() {
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

func (a *app) retryPolicy() *retry.Policy {
	return &retry.Policy{
		MaxRetries: a.cfg.RetryMaxRetries,
		BaseDelay:  a.cfg.RetryBaseDelay,
		Factor:     a.cfg.RetryFactor,
		Logger:     a.logger,
	}
}

func (a *app) telemetryOptions() telemetry.Options {
	return telemetry.Options{
		Enabled:         a.cfg.OTelEnabled,
		Stdout:          a.cfg.OTelStdout,
		MetricsEndpoint: a.cfg.OTLPEndpoint,
		ServiceName:     "leadsync",
		Version:         Version,
	}
}

func (a *app) listMap() (*tracker.ListMap, error) {
	return tracker.NewListMap(a.cfg.Lists)
}

// backends are fresh store handles for one run.
type backends struct {
	sheet  *sheets.Store
	trello *trello.TaskBoard

	// records and board are the instrumented, retrying views the engine uses.
	records tracker.RecordStore
	board   tracker.TaskBoard
}

// openBackends builds both stores. policy wraps every call; a nil policy
// leaves calls unretried.
func (a *app) openBackends(ctx context.Context, policy *retry.Policy) (*backends, error) {
	store, err := sheets.New(ctx, a.cfg.SheetID, a.cfg.SheetRange, sheetsOptions(a.cfg)...)
	if err != nil {
		return nil, err
	}
	client := trello.NewClient(a.cfg.TrelloKey, a.cfg.TrelloToken)
	client.BaseURL = trelloBaseURL
	board := trello.NewTaskBoard(client.WithBoardID(a.cfg.BoardID).WithTimeout(a.cfg.HTTPTimeout))

	b := &backends{
		sheet:   store,
		trello:  board,
		records: telemetry.WrapRecordStore(store),
		board:   telemetry.WrapTaskBoard(board),
	}
	if policy != nil {
		b.records = tracker.RecordsWithRetry(b.records, policy)
		b.board = tracker.BoardWithRetry(b.board, policy)
	}
	return b, nil
}

// validateBoard checks the board and its lists under policy. Transport and
// 5xx failures are retried; a closed board or a missing list is not.
func validateBoard(ctx context.Context, b *backends, lists *tracker.ListMap, policy *retry.Policy) (*trello.Board, error) {
	p := *policy
	p.IsTerminal = func(err error) bool {
		return errors.Is(err, trello.ErrInvalidBoard) || retry.TerminalStatus(err)
	}
	return retry.Value(ctx, &p, "board.validate", func(ctx context.Context) (*trello.Board, error) {
		return b.trello.Validate(ctx, lists.ListIDs())
	})
}
