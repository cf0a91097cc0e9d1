// Package scenario runs scripted user journeys against the app under test
// and records one pass/fail check per assertion.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
)

// Step is one stage of a scenario. It returns the checks it recorded. A
// non-nil error aborts the rest of the scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context, env *Env) (check.Results, error)
}

// Scenario is a fixed user journey.
type Scenario struct {
	Name        string
	Description string
	Steps       []Step
}

// Credentials resolves secrets such as demo passwords.
type Credentials interface {
	First(names ...string) (string, error)
}

// Env is what a step sees: config, pages and assertion helpers. It is
// created per scenario and its pages are closed when the scenario ends.
type Env struct {
	Config       *config.Config
	Browser      browser.Browser
	Creds        Credentials
	RunID        string
	ArtifactsDir string
	Log          *slog.Logger

	scenario string
	pages    map[string]browser.Page
	order    []string
}

func (e *Env) pollOptions() check.PollOptions {
	return check.PollOptions{
		Timeout: e.Config.Poll.Timeout,
		Initial: e.Config.Poll.Initial,
		Max:     e.Config.Poll.Max,
	}
}

// Page returns the page for key, opening it in a fresh browser context on
// first use. Each identity gets its own key, so sessions never mix.
func (e *Env) Page(ctx context.Context, key string) (browser.Page, error) {
	if p, ok := e.pages[key]; ok {
		return p, nil
	}
	p, err := e.Browser.NewPage(ctx, browser.PageOptions{BaseURL: e.Config.App.BaseURL})
	if err != nil {
		return nil, fmt.Errorf("open page for %s: %w", key, err)
	}
	if e.pages == nil {
		e.pages = make(map[string]browser.Page)
	}
	e.pages[key] = p
	e.order = append(e.order, key)
	return p, nil
}

// closePages closes pages in reverse opening order.
func (e *Env) closePages() {
	for i := len(e.order) - 1; i >= 0; i-- {
		if err := e.pages[e.order[i]].Close(); err != nil {
			e.Log.Debug("close page", "page", e.order[i], "error", err)
		}
	}
	e.pages = nil
	e.order = nil
}

// Selector returns the configured selector override for key, or def.
func (e *Env) Selector(key, def string) string {
	return e.Config.Selector(key, def)
}

// Goto navigates page to path (relative to the app base URL).
func (e *Env) Goto(ctx context.Context, page browser.Page, path string) error {
	res, err := page.Navigate(ctx, browser.NavigateOptions{URL: path, WaitUntil: "domcontentloaded"})
	if err != nil {
		return err
	}
	e.Log.Debug("navigated", "url", res.URL, "title", res.Title)
	return nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// capture saves a screenshot for a failed check. Best-effort.
func (e *Env) capture(ctx context.Context, page browser.Page, label string) {
	if page == nil || e.ArtifactsDir == "" || !e.Config.Scenarios.Screenshots {
		return
	}
	data, err := page.Screenshot(ctx, browser.ScreenshotOptions{FullPage: true})
	if err != nil {
		e.Log.Debug("screenshot failed", "label", label, "error", err)
		return
	}
	name := unsafeName.ReplaceAllString(strings.ToLower(e.scenario+"-"+label), "-") + ".png"
	path := filepath.Join(e.ArtifactsDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		e.Log.Debug("write screenshot", "path", path, "error", err)
		return
	}
	e.Log.Info("saved screenshot", "path", path)
}
