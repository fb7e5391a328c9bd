package tracker

import (
	"fmt"
	"strings"
	"time"
)

// RunStatistics counts the outcomes of one Engine.Run. A fresh value is
// created per run and never shared.
type RunStatistics struct {
	RunID          string    `json:"run_id"`
	Direction      Direction `json:"direction"`
	TasksCreated   int       `json:"tasks_created"`   // includes replacements for missing tasks
	TasksUpdated   int       `json:"tasks_updated"`   // tasks patched from record fields
	TasksRelinked  int       `json:"tasks_relinked"`  // unlinked records matched to an existing task
	StatusesPushed int       `json:"statuses_pushed"` // record statuses overwritten from the board
	Skipped        int       `json:"skipped"`         // unlinked tasks and nameless records
	Errors         int       `json:"errors"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Interrupted    bool      `json:"interrupted,omitempty"`
}

// TotalOperations is the number of writes the run performed.
func (s *RunStatistics) TotalOperations() int {
	return s.TasksCreated + s.TasksUpdated + s.TasksRelinked + s.StatusesPushed
}

// Success reports whether the run finished without errors.
func (s *RunStatistics) Success() bool {
	return s.Errors == 0 && !s.Interrupted
}

// Duration is the wall time of the run.
func (s *RunStatistics) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

const reportRule = "============================================================"

// Render formats the run summary block printed at the end of every run.
func Render(s *RunStatistics) string {
	var b strings.Builder
	b.WriteString(reportRule + "\n")
	b.WriteString("SYNC REPORT\n")
	b.WriteString(reportRule + "\n")
	fmt.Fprintf(&b, "Direction:                 %s\n", s.Direction)
	fmt.Fprintf(&b, "Tasks created:             %d\n", s.TasksCreated)
	fmt.Fprintf(&b, "Tasks updated:             %d\n", s.TasksUpdated)
	fmt.Fprintf(&b, "Tasks relinked:            %d\n", s.TasksRelinked)
	fmt.Fprintf(&b, "Statuses pushed to store:  %d\n", s.StatusesPushed)
	fmt.Fprintf(&b, "Records skipped:           %d\n", s.Skipped)
	fmt.Fprintf(&b, "Errors encountered:        %d\n", s.Errors)
	fmt.Fprintf(&b, "Total operations:          %d\n", s.TotalOperations())
	if d := s.Duration(); d > 0 {
		fmt.Fprintf(&b, "Duration:                  %s\n", d.Round(time.Millisecond))
	}
	b.WriteString(reportRule + "\n")
	return b.String()
}
