package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/neboloop/agencycheck/internal/check"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	okBadge     = lipgloss.NewStyle().Foreground(lipgloss.Color("#1e1e2e")).Background(lipgloss.Color("#a6e3a1")).Bold(true).Padding(0, 1)
	failedBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("#1e1e2e")).Background(lipgloss.Color("#f38ba8")).Bold(true).Padding(0, 1)
)

// ProgressLine renders one check as it is recorded.
func ProgressLine(c check.Check) string {
	if c.Passed {
		return passStyle.Render("✓ "+c.Label) + scope(c)
	}
	line := failStyle.Render("✗ "+c.Label) + scope(c)
	if c.Reason != "" {
		line += "\n    " + dimStyle.Render(c.Reason)
	}
	return line
}

func scope(c check.Check) string {
	parts := make([]string, 0, 2)
	if c.Scenario != "" {
		parts = append(parts, c.Scenario)
	}
	if c.Step != "" && c.Step != c.Scenario {
		parts = append(parts, c.Step)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + dimStyle.Render("["+strings.Join(parts, "/")+"]")
}

// Text renders the end-of-run summary: counts, then every failure with its
// reason.
func Text(s Summary) string {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = "Results"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	if s.RunID != "" {
		fmt.Fprintf(&b, "%s\n", dimStyle.Render("run "+s.RunID))
	}

	r := s.Results
	fmt.Fprintf(&b, "\nPassed: %d\nFailed: %d\nTotal:  %d\nPass rate: %s\n",
		len(r.Passed()), len(r.Failed()), r.Total(), PassRate(r))
	if s.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", s.Duration.Round(time.Millisecond))
	}

	if failed := r.FailedChecks(); len(failed) > 0 {
		b.WriteString("\nFailures:\n")
		for _, c := range failed {
			b.WriteString("  ")
			b.WriteString(ProgressLine(c))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if r.OK() {
		b.WriteString(okBadge.Render("PASS"))
	} else {
		b.WriteString(failedBadge.Render("FAIL"))
	}
	b.WriteString("\n")
	return b.String()
}
