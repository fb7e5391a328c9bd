package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/steveyegge/leadsync/internal/config"
	"github.com/steveyegge/leadsync/internal/types"
	"github.com/steveyegge/leadsync/internal/ui"
)

var statusCheck bool

// statusCmd displays configuration and, with --check, connectivity.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show leadsync configuration",
	Long: `Display the current configuration with secrets masked.

With --check, also connect to the board to verify every configured list
exists on it, and read the sheet to count leads.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "verify the board, its lists and the sheet")
	rootCmd.AddCommand(statusCmd)
}

type statusLine struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Failed bool   `json:"failed,omitempty"`
	Warned bool   `json:"warned,omitempty"`
}

type statusReport struct {
	EnvFile string       `json:"env_file"`
	Config  []statusLine `json:"config"`
	Checks  []statusLine `json:"checks,omitempty"`
}

func (r *statusReport) failures() (failed, warned int) {
	for _, l := range append(append([]statusLine(nil), r.Config...), r.Checks...) {
		if l.Failed {
			failed++
		}
		if l.Warned {
			warned++
		}
	}
	return failed, warned
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return configFailure(err)
	}
	report := buildStatusReport(cfg)

	failed, _ := report.failures()
	if statusCheck && failed == 0 {
		a, err := newApp(envFile, verboseFlag, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.close()
		report.Checks = runChecks(cmd.Context(), a)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := outputJSON(out, report); err != nil {
			return err
		}
	} else {
		printStatusReport(out, report)
	}

	if cerr := cmd.Context().Err(); cerr != nil {
		return cerr
	}
	if failed, _ := report.failures(); failed > 0 {
		return &exitError{code: exitFailure}
	}
	return nil
}

func buildStatusReport(cfg *config.Config) *statusReport {
	r := &statusReport{EnvFile: cfg.EnvFile}
	if r.EnvFile == "" {
		r.EnvFile = "(none)"
	}
	required := func(name, value string) statusLine {
		if value == "" {
			return statusLine{Name: name, Value: "(not set)", Failed: true}
		}
		return statusLine{Name: name, Value: value}
	}
	secret := func(name, value string) statusLine {
		l := required(name, value)
		l.Value = config.Mask(value)
		return l
	}

	r.Config = []statusLine{
		required(config.KeySheetID, cfg.SheetID),
		{Name: config.KeySheetRange, Value: cfg.SheetRange},
		{Name: config.KeyCredsPath, Value: cfg.CredsPath},
		secret(config.KeyTrelloKey, cfg.TrelloKey),
		secret(config.KeyTrelloToken, cfg.TrelloToken),
		required(config.KeyBoardID, cfg.BoardID),
		required(config.KeyListTodo, cfg.Lists[types.StatusNew]),
		required(config.KeyListInProgress, cfg.Lists[types.StatusContacted]),
		required(config.KeyListDone, cfg.Lists[types.StatusQualified]),
		required(config.KeyListLost, cfg.Lists[types.StatusLost]),
		{Name: config.KeyLogLevel, Value: cfg.LogLevel},
		{Name: config.KeyFileLogging, Value: strconv.FormatBool(cfg.FileLogging)},
		{Name: config.KeyRetryMax, Value: strconv.Itoa(cfg.RetryMaxRetries)},
		{Name: config.KeyRetryBaseDelay, Value: cfg.RetryBaseDelay.String()},
		{Name: config.KeyOTelEnabled, Value: strconv.FormatBool(cfg.OTelEnabled)},
	}
	if err := cfg.Validate(); err != nil {
		var verr *config.ValidationError
		if !errors.As(err, &verr) {
			r.Config = append(r.Config, statusLine{Name: "validation", Value: err.Error(), Failed: true})
		}
	}
	return r
}

// runChecks reads the board and the sheet under the configured retry policy.
func runChecks(ctx context.Context, a *app) []statusLine {
	var checks []statusLine

	lists, err := a.listMap()
	if err != nil {
		return append(checks, statusLine{Name: "lists", Value: err.Error(), Failed: true})
	}
	policy := a.retryPolicy()
	b, err := a.openBackends(ctx, policy)
	if err != nil {
		return append(checks, statusLine{Name: "sheet client", Value: err.Error(), Failed: true})
	}

	board, err := validateBoard(ctx, b, lists, policy)
	switch {
	case err != nil:
		checks = append(checks, statusLine{Name: "trello board", Value: err.Error(), Failed: true})
	default:
		checks = append(checks, statusLine{
			Name:  "trello board",
			Value: fmt.Sprintf("%s (%d lists mapped)", board.Name, len(lists.ListIDs())),
		})
	}

	records, err := b.records.ListRecords(ctx)
	if err != nil {
		return append(checks, statusLine{Name: "lead sheet", Value: err.Error(), Failed: true})
	}
	linked := 0
	for i := range records {
		if records[i].Linked() {
			linked++
		}
	}
	line := statusLine{
		Name:  "lead sheet",
		Value: fmt.Sprintf("%d leads, %d linked to cards", len(records), linked),
	}
	if len(records) == 0 {
		line.Warned = true
	}
	return append(checks, line)
}

func printStatusReport(w io.Writer, r *statusReport) {
	outcome := func(l statusLine) ui.Outcome {
		switch {
		case l.Failed:
			return ui.Fail
		case l.Warned:
			return ui.Warn
		}
		return ui.Pass
	}

	fmt.Fprintln(w, ui.RenderCategory("configuration"))
	fmt.Fprintln(w, ui.RenderCheck(ui.Pass, "env file", r.EnvFile))
	for _, l := range r.Config {
		fmt.Fprintln(w, ui.RenderCheck(outcome(l), l.Name, l.Value))
	}
	if len(r.Checks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.RenderCategory("connectivity"))
		for _, l := range r.Checks {
			fmt.Fprintln(w, ui.RenderCheck(outcome(l), l.Name, l.Value))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.RenderSummary(r.failures()))
}
