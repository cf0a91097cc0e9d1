// Package report renders run results for people (text, markdown, HTML) and
// machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/neboloop/agencycheck/internal/check"
)

// Formats
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Formats lists the supported formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatMarkdown, FormatHTML}
}

// Summary is what a report renders.
type Summary struct {
	Title     string
	RunID     string
	Kind      string
	StartedAt time.Time
	Duration  time.Duration
	Results   check.Results
}

// Write renders s to w in format.
func Write(w io.Writer, format string, s Summary) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		_, err := io.WriteString(w, Text(s))
		return err
	case FormatJSON:
		return writeJSON(w, s)
	case FormatMarkdown, "md":
		_, err := io.WriteString(w, Markdown(s))
		return err
	case FormatHTML:
		html, err := HTML(s)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err
	default:
		return fmt.Errorf("unknown report format %q (have: %s)", format, strings.Join(Formats(), ", "))
	}
}

// PassRate formats the pass rate; "n/a" for an empty run.
func PassRate(r check.Results) string {
	if r.Total() == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", r.PassRate()*100)
}

type jsonReport struct {
	RunID      string        `json:"run_id,omitempty"`
	Kind       string        `json:"kind,omitempty"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	Total      int           `json:"total"`
	Passed     []string      `json:"passed"`
	Failed     []string      `json:"failed"`
	PassRate   float64       `json:"pass_rate"`
	ExitCode   int           `json:"exit_code"`
	Checks     []check.Check `json:"checks"`
}

func writeJSON(w io.Writer, s Summary) error {
	rep := jsonReport{
		RunID:      s.RunID,
		Kind:       s.Kind,
		DurationMS: s.Duration.Milliseconds(),
		Total:      s.Results.Total(),
		Passed:     s.Results.Passed(),
		Failed:     s.Results.Failed(),
		PassRate:   s.Results.PassRate(),
		ExitCode:   s.Results.ExitCode(),
		Checks:     s.Results.Checks,
	}
	if !s.StartedAt.IsZero() {
		rep.StartedAt = &s.StartedAt
	}
	if rep.Checks == nil {
		rep.Checks = []check.Check{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
