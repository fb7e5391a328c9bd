package tracker

import (
	"strings"
	"testing"
	"time"
)

func TestRender(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := &RunStatistics{
		Direction:      DirectionBoth,
		TasksCreated:   2,
		TasksUpdated:   1,
		StatusesPushed: 3,
		Skipped:        4,
		Errors:         1,
		StartedAt:      start,
		FinishedAt:     start.Add(1500 * time.Millisecond),
	}
	out := Render(s)
	for _, want := range []string{
		"SYNC REPORT",
		"Direction:                 both",
		"Tasks created:             2",
		"Tasks updated:             1",
		"Statuses pushed to store:  3",
		"Records skipped:           4",
		"Errors encountered:        1",
		"Total operations:          6",
		"Duration:                  1.5s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if s.Success() {
		t.Error("run with errors should not be a success")
	}
}

func TestRunStatisticsSuccess(t *testing.T) {
	s := &RunStatistics{}
	if !s.Success() {
		t.Error("empty run should succeed")
	}
	s.Interrupted = true
	if s.Success() {
		t.Error("interrupted run should not succeed")
	}
}
