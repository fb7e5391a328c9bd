package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/leadsync/internal/telemetry"
	"github.com/steveyegge/leadsync/internal/tracker"
)

var (
	syncDirection string
	syncDryRun    bool
	syncRelink    bool
	syncInterval  time.Duration
)

func init() {
	rootCmd.Flags().StringVarP(&syncDirection, "direction", "d", string(tracker.DirectionBoth),
		"sync direction: both, leads-to-tasks or tasks-to-leads")
	rootCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "validate configuration and show what would run without calling any API")
	rootCmd.Flags().BoolVar(&syncRelink, "relink", false, "before creating a card, look for one already carrying the lead's marker")
	rootCmd.Flags().DurationVar(&syncInterval, "interval", 0, "repeat the sync at this interval until interrupted")
}

// syncOptions are the flag values for one invocation.
type syncOptions struct {
	Direction tracker.Direction
	DryRun    bool
	Relink    bool
	Interval  time.Duration
	JSON      bool
}

func runSyncCmd(cmd *cobra.Command, _ []string) error {
	dir, err := tracker.ParseDirection(syncDirection)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	if syncInterval < 0 {
		return &exitError{code: exitFailure, err: fmt.Errorf("--interval must not be negative")}
	}

	a, err := newApp(envFile, verboseFlag, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := telemetry.Init(ctx, a.telemetryOptions()); err != nil {
		a.logger.Warn("telemetry disabled", slog.String("error", err.Error()))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	return runSync(ctx, a, syncOptions{
		Direction: dir,
		DryRun:    syncDryRun,
		Relink:    syncRelink,
		Interval:  syncInterval,
		JSON:      jsonOutput,
	}, cmd.OutOrStdout())
}

// runSync runs one sync, or one per interval until ctx is cancelled. It
// returns an *exitError when a run counted errors and ctx.Err() when
// interrupted.
func runSync(ctx context.Context, a *app, opts syncOptions, out io.Writer) error {
	if opts.DryRun {
		logDryRun(a, opts)
		return nil
	}

	for cycle := 1; ; cycle++ {
		stats, err := syncOnce(ctx, a, opts)
		if stats != nil {
			telemetry.RecordRun(ctx, stats)
			if perr := printStats(out, stats, opts.JSON); perr != nil {
				return perr
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failed := err != nil || !stats.Success()
		if opts.Interval <= 0 {
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			if failed {
				return &exitError{code: exitFailure}
			}
			return nil
		}

		if err != nil {
			a.logger.Error("sync cycle failed", slog.Int("cycle", cycle), slog.String("error", err.Error()))
		}
		a.logger.Info("waiting for next sync", slog.Duration("interval", opts.Interval), slog.Bool("last_failed", failed))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

// syncOnce opens fresh backends, checks the board and runs the engine. A
// non-nil error with nil stats means the run never started.
func syncOnce(ctx context.Context, a *app, opts syncOptions) (*tracker.RunStatistics, error) {
	lists, err := a.listMap()
	if err != nil {
		return nil, err
	}
	policy := a.retryPolicy()
	b, err := a.openBackends(ctx, policy)
	if err != nil {
		return nil, err
	}

	board, err := validateBoard(ctx, b, lists, policy)
	if err != nil {
		return nil, fmt.Errorf("board check failed: %w", err)
	}
	a.logger.Info("connected to board", slog.String("board", board.Name), slog.String("board_id", board.ID))

	engine := tracker.NewEngine(b.records, b.board, lists, a.logger)
	engine.RelinkByMarker = opts.Relink
	return engine.Run(ctx, opts.Direction)
}

func printStats(out io.Writer, stats *tracker.RunStatistics, asJSON bool) error {
	if asJSON {
		return outputJSON(out, stats)
	}
	_, err := fmt.Fprint(out, tracker.Render(stats))
	return err
}

// logDryRun describes the run without touching either API.
func logDryRun(a *app, opts syncOptions) {
	log := a.logger.With(slog.Bool("dry_run", true))
	log.Info("dry run: configuration is valid",
		slog.String("sheet_id", a.cfg.SheetID),
		slog.String("range", a.cfg.SheetRange),
		slog.String("board_id", a.cfg.BoardID),
		slog.String("direction", string(opts.Direction)))
	if opts.Direction != tracker.DirectionLeadsToTasks {
		log.Info("dry run: would copy each linked card's list into the sheet status column")
	}
	if opts.Direction != tracker.DirectionTasksToLeads {
		log.Info("dry run: would create or update one card per named lead", slog.Bool("relink", opts.Relink))
	}
	if opts.Interval > 0 {
		log.Info("dry run: would repeat", slog.Duration("interval", opts.Interval))
	}
}
