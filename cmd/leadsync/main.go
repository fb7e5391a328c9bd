// Package main provides the leadsync CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

var (
	envFile     string
	verboseFlag bool
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "leadsync",
	Short: "Sync sales leads between a Google Sheet and a Trello board",
	Long: `Reconcile a lead sheet with a Trello board.

By default, performs a bidirectional sync:
- Pulls each linked card's list into the sheet's status column
- Pushes every named lead to the board, creating cards as needed

Use --direction to run only one half. Settings are read from the
environment and from the dotenv file given by --env-file.`,
	Version:       Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSyncCmd,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to read settings from")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
}

// exitError carries a process exit code through cobra. A nil err means the
// failure was already reported.
type exitError struct {
	code int
	err  error
	hint string
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

// reportError writes err to w unless it was already reported.
func reportError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "Interrupted")
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(w, "Error: %v\n", ee.err)
		}
		if ee.hint != "" {
			fmt.Fprintf(w, "Hint: %s\n", ee.hint)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		reportError(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}
