package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrPageClosed is returned by any action on a closed page.
var ErrPageClosed = errors.New("page is closed")

// Browser is a launched browser. Each page lives in its own isolated
// context (cookies, storage), so two pages can be two different users.
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// Page is a single tab. Selectors are CSS selectors.
type Page interface {
	Navigate(ctx context.Context, opts NavigateOptions) (*ActionResult, error)
	Click(ctx context.Context, opts ClickOptions) error
	Fill(ctx context.Context, opts FillOptions) error
	Hover(ctx context.Context, opts HoverOptions) error
	Press(ctx context.Context, opts PressOptions) error
	Drag(ctx context.Context, opts DragOptions) error
	SetViewport(ctx context.Context, vp Viewport) error

	IsVisible(ctx context.Context, selector string) (bool, error)
	HasText(ctx context.Context, text string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	URL(ctx context.Context) (string, error)

	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)
	Close() error
}

// PageOptions configures a new page.
type PageOptions struct {
	// BaseURL is prefixed to navigation targets that start with "/".
	BaseURL string
	// Viewport overrides the configured default when set.
	Viewport Viewport
}

// ActionResult is the result of a navigation.
type ActionResult struct {
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// NavigateOptions configures navigation.
type NavigateOptions struct {
	URL       string
	WaitUntil string // "load", "domcontentloaded", "networkidle"
	Timeout   time.Duration
}

// ClickOptions configures click actions.
type ClickOptions struct {
	Selector string
	Button   string // "left", "right", "middle"
	Count    int    // 1=click, 2=double-click
	Timeout  time.Duration
}

// FillOptions configures fill actions.
type FillOptions struct {
	Selector string
	Value    string
	Timeout  time.Duration
}

// HoverOptions configures hover actions.
type HoverOptions struct {
	Selector string
	Timeout  time.Duration
}

// PressOptions configures key press actions.
type PressOptions struct {
	Key string // Enter, Tab, Escape, ...
}

// DragOptions configures a pointer drag from Source onto Target.
type DragOptions struct {
	Source  string
	Target  string
	Steps   int // intermediate mouse moves, so pointer-sensor DnD libraries engage
	Timeout time.Duration
}

// ScreenshotOptions configures screenshots.
type ScreenshotOptions struct {
	FullPage bool
}

// Open launches a browser for the configured driver.
func Open(ctx context.Context, cfg Config) (Browser, error) {
	resolved, err := ResolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	switch resolved.Driver {
	case DriverChromedp:
		return openChromedp(ctx, resolved)
	default:
		return openPlaywright(ctx, resolved)
	}
}

// ResolveURL joins a "/path" target onto base. Absolute URLs pass through.
func ResolveURL(base, target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(target, "/") {
		return target, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative url %s needs a base url", target)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	return u.ResolveReference(ref).String(), nil
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// browserErrorHints maps error fragments to actionable hints
var browserErrorHints = map[string]string{
	"net::err_connection_refused": "Is the app running? Check app.base_url",
	"timeout":                     "Element never became actionable. Check the selector or raise browser.action_timeout",
	"context deadline":            "Operation timed out. Raise browser.action_timeout",
	"strict mode violation":       "Selector matched several elements. Make it more specific",
	"executable doesn't exist":    "Playwright browsers are missing. Run with browser.install: true",
	"no clickable area":           "Element has no visible area. It may be hidden or zero-sized",
}

// wrapBrowserError wraps an error with an actionable hint
func wrapBrowserError(err error, action string) error {
	if err == nil {
		return nil
	}
	errStr := strings.ToLower(err.Error())
	for pattern, hint := range browserErrorHints {
		if strings.Contains(errStr, pattern) {
			return fmt.Errorf("%s failed: %w (hint: %s)", action, err, hint)
		}
	}
	return fmt.Errorf("%s failed: %w", action, err)
}
