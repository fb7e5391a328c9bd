// Package ui styles the human-readable output of the leadsync CLI.
// Colors adapt to light and dark terminals and collapse to plain text when
// output is not a terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	// muted gray for details
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle     = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle     = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
)

// Outcome classifies a status check line.
type Outcome int

const (
	Pass Outcome = iota
	Warn
	Fail
)

func (o Outcome) icon() string {
	switch o {
	case Pass:
		return PassStyle.Render(IconPass)
	case Warn:
		return WarnStyle.Render(IconWarn)
	default:
		return FailStyle.Render(IconFail)
	}
}

// RenderCategory renders a section header in uppercase with accent color.
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderCheck renders one "icon name: detail" line. The detail is muted.
func RenderCheck(o Outcome, name, detail string) string {
	line := fmt.Sprintf("  %s %s", o.icon(), name)
	if detail != "" {
		line += MutedStyle.Render(": " + detail)
	}
	return line
}

// RenderSummary renders the closing line of a status report.
func RenderSummary(failed, warned int) string {
	switch {
	case failed > 0:
		return FailStyle.Render(fmt.Sprintf("%d check(s) failed", failed))
	case warned > 0:
		return WarnStyle.Render(fmt.Sprintf("all checks passed with %d warning(s)", warned))
	default:
		return PassStyle.Render("all checks passed")
	}
}
