package browser

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/neboloop/agencycheck/internal/logging"
)

// playwrightBrowser owns the Playwright driver process and one Chromium.
type playwrightBrowser struct {
	mu sync.Mutex

	cfg     *ResolvedConfig
	pw      *playwright.Playwright
	browser playwright.Browser
	pages   []*playwrightPage
	closed  bool
}

// playwrightPage wraps a Playwright page and the context it owns.
type playwrightPage struct {
	mu sync.RWMutex

	cfg     *ResolvedConfig
	bctx    playwright.BrowserContext
	page    playwright.Page
	baseURL string
	closed  bool
	onClose func()
}

func openPlaywright(ctx context.Context, cfg *ResolvedConfig) (*playwrightBrowser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("failed to install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, wrapBrowserError(err, "start playwright")
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecutablePath)
	}
	if cfg.NoSandbox {
		opts.Args = []string{"--no-sandbox", "--disable-dev-shm-usage"}
	}
	if cfg.SlowMo > 0 {
		opts.SlowMo = playwright.Float(float64(cfg.SlowMo.Milliseconds()))
	}

	b, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, wrapBrowserError(err, "launch chromium")
	}

	logging.Debugf("[browser] playwright chromium launched (headless=%v)", cfg.Headless)
	return &playwrightBrowser{cfg: cfg, pw: pw, browser: b}, nil
}

// NewPage opens a page in a fresh browser context.
func (b *playwrightBrowser) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("browser is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vp := b.cfg.Viewport
	if !opts.Viewport.IsZero() {
		vp = opts.Viewport
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: vp.Width, Height: vp.Height},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(b.cfg.ActionTimeout.Milliseconds()))
	bctx.SetDefaultNavigationTimeout(float64(b.cfg.NavigationTimeout.Milliseconds()))

	pwPage, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page := &playwrightPage{
		cfg:     b.cfg,
		bctx:    bctx,
		page:    pwPage,
		baseURL: opts.BaseURL,
	}
	b.track(page)
	return page, nil
}

// track keeps page until it or the browser is closed. b.mu must be held.
func (b *playwrightBrowser) track(page *playwrightPage) {
	b.pages = append(b.pages, page)
	page.onClose = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.pages = slices.DeleteFunc(b.pages, func(p *playwrightPage) bool { return p == page })
	}
}

// Close closes every page, the browser and the Playwright driver.
func (b *playwrightBrowser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pages := b.pages
	b.pages = nil
	b.mu.Unlock()

	for _, p := range pages {
		_ = p.Close()
	}

	var firstErr error
	if err := b.browser.Close(); err != nil {
		firstErr = fmt.Errorf("close browser: %w", err)
	}
	if err := b.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stop playwright: %w", err)
	}
	return firstErr
}

// Close closes the page and its browser context.
func (p *playwrightPage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	_ = p.page.Close()
	err := p.bctx.Close()
	p.mu.Unlock()

	if p.onClose != nil {
		p.onClose()
	}
	return err
}

func (p *playwrightPage) ready(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPageClosed
	}
	return ctx.Err()
}
