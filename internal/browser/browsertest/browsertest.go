// Package browsertest provides an in-memory browser.Browser for tests.
//
// A Page holds a tiny fake DOM: the current URL, which selectors are visible,
// element counts per selector and visible text. Hooks let a test script how
// the "app" reacts to navigation, clicks, fills and drags.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/neboloop/agencycheck/internal/browser"
)

// Browser is a fake browser.Browser.
type Browser struct {
	mu sync.Mutex

	// Setup runs on every new page; index is the creation order.
	Setup func(p *Page, index int)

	Pages  []*Page
	Closed bool
}

// NewBrowser returns a fake browser calling setup for each page.
func NewBrowser(setup func(p *Page, index int)) *Browser {
	return &Browser{Setup: setup}
}

func (b *Browser) NewPage(ctx context.Context, opts browser.PageOptions) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Closed {
		return nil, fmt.Errorf("browser is closed")
	}
	p := NewPage(opts.BaseURL)
	p.Viewport = opts.Viewport
	if b.Setup != nil {
		b.Setup(p, len(b.Pages))
	}
	b.Pages = append(b.Pages, p)
	return p, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	for _, p := range b.Pages {
		_ = p.Close()
	}
	return nil
}

// Page is a fake browser.Page.
type Page struct {
	mu sync.Mutex

	BaseURL  string
	Viewport browser.Viewport

	OnNavigate func(p *Page, url string) error
	OnClick    func(p *Page, selector string) error
	OnFill     func(p *Page, selector, value string) error
	OnPress    func(p *Page, key string) error
	OnDrag     func(p *Page, source, target string) error
	OnResize   func(p *Page, vp browser.Viewport) error

	url     string
	visible map[string]bool
	counts  map[string]int
	texts   map[string]bool
	values  map[string]string
	actions []string
	closed  bool
}

// NewPage returns an empty page.
func NewPage(baseURL string) *Page {
	return &Page{
		BaseURL: baseURL,
		visible: make(map[string]bool),
		counts:  make(map[string]int),
		texts:   make(map[string]bool),
		values:  make(map[string]string),
	}
}

// SetURL sets the current URL; "/path" is joined to BaseURL.
func (p *Page) SetURL(u string) {
	if resolved, err := browser.ResolveURL(p.BaseURL, u); err == nil {
		u = resolved
	}
	p.url = u
}

// Show marks selectors visible.
func (p *Page) Show(selectors ...string) {
	for _, s := range selectors {
		p.visible[s] = true
	}
}

// Hide marks selectors hidden.
func (p *Page) Hide(selectors ...string) {
	for _, s := range selectors {
		delete(p.visible, s)
	}
}

// SetCount sets the match count for a selector.
func (p *Page) SetCount(selector string, n int) {
	p.counts[selector] = n
}

// AddCount adds delta to the match count for a selector.
func (p *Page) AddCount(selector string, delta int) {
	p.counts[selector] += delta
}

// AddText makes text visible on the page.
func (p *Page) AddText(text string) {
	p.texts[text] = true
}

// RemoveText removes visible text.
func (p *Page) RemoveText(text string) {
	delete(p.texts, text)
}

// Value returns the last value filled into selector.
func (p *Page) Value(selector string) string {
	return p.values[selector]
}

// Actions returns the recorded action log ("click button", "fill input=v", ...).
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// IsClosed reports whether Close was called.
func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) begin(ctx context.Context, action string) error {
	if p.closed {
		return browser.ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if action != "" {
		p.actions = append(p.actions, action)
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, opts browser.NavigateOptions) (*browser.ActionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "navigate "+opts.URL); err != nil {
		return nil, err
	}
	p.SetURL(opts.URL)
	if p.OnNavigate != nil {
		if err := p.OnNavigate(p, opts.URL); err != nil {
			return nil, err
		}
	}
	return &browser.ActionResult{URL: p.url}, nil
}

func (p *Page) Click(ctx context.Context, opts browser.ClickOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "click "+opts.Selector); err != nil {
		return err
	}
	if p.OnClick != nil {
		return p.OnClick(p, opts.Selector)
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, opts browser.FillOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "fill "+opts.Selector+"="+opts.Value); err != nil {
		return err
	}
	p.values[opts.Selector] = opts.Value
	if p.OnFill != nil {
		return p.OnFill(p, opts.Selector, opts.Value)
	}
	return nil
}

func (p *Page) Hover(ctx context.Context, opts browser.HoverOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begin(ctx, "hover "+opts.Selector)
}

func (p *Page) Press(ctx context.Context, opts browser.PressOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "press "+opts.Key); err != nil {
		return err
	}
	if p.OnPress != nil {
		return p.OnPress(p, opts.Key)
	}
	return nil
}

func (p *Page) Drag(ctx context.Context, opts browser.DragOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "drag "+opts.Source+" -> "+opts.Target); err != nil {
		return err
	}
	if p.OnDrag != nil {
		return p.OnDrag(p, opts.Source, opts.Target)
	}
	return nil
}

func (p *Page) SetViewport(ctx context.Context, vp browser.Viewport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "resize "+vp.String()); err != nil {
		return err
	}
	p.Viewport = vp
	if p.OnResize != nil {
		return p.OnResize(p, vp)
	}
	return nil
}

func (p *Page) IsVisible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, ""); err != nil {
		return false, err
	}
	return p.visible[selector], nil
}

func (p *Page) HasText(ctx context.Context, text string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, ""); err != nil {
		return false, err
	}
	for t := range p.texts {
		if strings.Contains(t, text) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, ""); err != nil {
		return 0, err
	}
	return p.counts[selector], nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, ""); err != nil {
		return "", err
	}
	return p.url, nil
}

func (p *Page) Screenshot(ctx context.Context, opts browser.ScreenshotOptions) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(ctx, "screenshot"); err != nil {
		return nil, err
	}
	return []byte("\x89PNG fake"), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

var (
	_ browser.Browser = (*Browser)(nil)
	_ browser.Page    = (*Page)(nil)
)
