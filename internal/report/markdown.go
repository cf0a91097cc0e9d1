package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM, // tables, strikethrough, autolinks, task lists
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		gmhtml.WithHardWraps(),
	),
)

// Markdown renders s as a GitHub-flavoured markdown document. Checks
// appear as a task list so passed ones render ticked.
func Markdown(s Summary) string {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = "Results"
	}
	fmt.Fprintf(&b, "# %s\n\n", escapeMD(title))

	r := s.Results
	b.WriteString("| Passed | Failed | Total | Pass rate |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %s |\n\n", len(r.Passed()), len(r.Failed()), r.Total(), PassRate(r))

	if s.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`", s.RunID)
		if !s.StartedAt.IsZero() {
			fmt.Fprintf(&b, " started %s", s.StartedAt.UTC().Format(time.RFC3339))
		}
		if s.Duration > 0 {
			fmt.Fprintf(&b, ", took %s", s.Duration.Round(time.Millisecond))
		}
		b.WriteString(".\n\n")
	}

	if r.Total() > 0 {
		b.WriteString("## Checks\n\n")
		for _, c := range r.Checks {
			box := " "
			if c.Passed {
				box = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s", box, escapeMD(c.Label))
			if c.Scenario != "" {
				fmt.Fprintf(&b, " _(%s)_", escapeMD(c.Scenario))
			}
			if !c.Passed && c.Reason != "" {
				fmt.Fprintf(&b, ": %s", escapeMD(singleLine(c.Reason)))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// HTML renders the markdown report to a standalone HTML page.
func HTML(s Summary) (string, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(s)), &body); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	title := s.Title
	if title == "" {
		title = "Results"
	}
	status := "pass"
	if !s.Results.OK() {
		status = "fail"
	}
	return fmt.Sprintf(htmlPage, html.EscapeString(title), status, body.String()), nil
}

const htmlPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; }
body.fail h1 { color: #b00020; }
body.pass h1 { color: #1b5e20; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: .25rem .75rem; }
li:has(input:not([checked])) { color: #b00020; }
</style>
</head>
<body class="%s">
%s</body>
</html>
`

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
	"[", `\[`, "]", `\]`, "|", `\|`, "<", "&lt;", ">", "&gt;", "~", `\~`,
)

func escapeMD(s string) string {
	return mdEscaper.Replace(s)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
