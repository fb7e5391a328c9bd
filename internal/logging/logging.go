// Package logging builds the structured logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelCritical sits above slog.LevelError for failures that abort a run.
const LevelCritical = slog.Level(12)

// Rotation limits for the sync log file.
const (
	LogFileName   = "sync.log"
	MaxFileSizeMB = 10
	MaxBackups    = 5
)

// Options configure New.
type Options struct {
	Level   string // DEBUG, INFO, WARNING, ERROR or CRITICAL
	Verbose bool   // forces DEBUG

	// FileLogging also writes to Dir/sync.log, rotated at MaxFileSizeMB.
	FileLogging bool
	Dir         string

	// Stderr overrides the console writer.
	Stderr io.Writer
}

// ParseLevel maps a level name onto a slog level. Unknown names yield INFO.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO", "":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	case "CRITICAL", "FATAL":
		return LevelCritical, true
	}
	return slog.LevelInfo, false
}

// New returns a text logger and a close function that releases the log
// file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	level, ok := ParseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if opts.Stderr != nil {
		out = opts.Stderr
	}
	closeFn := func() error { return nil }

	var file *lumberjack.Logger
	if opts.FileLogging {
		dir := opts.Dir
		if dir == "" {
			dir = "./logs"
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
		file = &lumberjack.Logger{
			Filename:   filepath.Join(dir, LogFileName),
			MaxSize:    MaxFileSizeMB,
			MaxBackups: MaxBackups,
		}
		out = io.MultiWriter(out, file)
		closeFn = file.Close
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameCritical,
	})
	logger := slog.New(handler)

	if !ok {
		logger.Warn("unknown log level, using INFO", slog.String("level", opts.Level))
	}
	if file != nil {
		logger.Info("file logging enabled", slog.String("path", file.Filename))
	}
	return logger, closeFn, nil
}

func renameCritical(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
			a.Value = slog.StringValue("CRITICAL")
		}
	}
	return a
}
