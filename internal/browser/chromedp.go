package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/neboloop/agencycheck/internal/logging"
)

// chromedpBrowser drives a locally launched Chrome over CDP.
type chromedpBrowser struct {
	mu sync.Mutex

	cfg         *ResolvedConfig
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	pages       []*chromedpPage
	closed      bool
}

// chromedpPage is one target in its own browser context.
type chromedpPage struct {
	mu sync.RWMutex

	cfg     *ResolvedConfig
	ctx     context.Context
	cancel  context.CancelFunc
	baseURL string
	closed  bool
	onClose func()
}

// chromedpRun is chromedp.Run; tests swap it.
var chromedpRun = chromedp.Run

// allocate makes the first Run on target. chromedp ties the Chrome process
// (for the root context) and the target's event loop (for a tab) to the
// context of that first Run, so it must be target itself and never a timed
// child. Startup is bounded from outside; on error the caller cancels target.
func allocate(ctx, target context.Context, timeout time.Duration) error {
	run := chromedpRun
	done := make(chan error, 1)
	go func() { done <- run(target) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("startup timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func openChromedp(ctx context.Context, cfg *ResolvedConfig) (*chromedpBrowser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	exe, err := FindChrome(cfg.ExecutablePath)
	if err != nil {
		return nil, err
	}
	opts = append(opts, chromedp.ExecPath(exe.Path))

	// the allocator outlives ctx; Close tears it down
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx)

	if err := allocate(ctx, rootCtx, cfg.NavigationTimeout); err != nil {
		rootCancel()
		allocCancel()
		return nil, wrapBrowserError(err, "launch chrome")
	}

	logging.Debugf("[browser] chromedp %s launched from %s (headless=%v)", exe.Kind, exe.Path, cfg.Headless)
	return &chromedpBrowser{
		cfg:         cfg,
		allocCancel: allocCancel,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
	}, nil
}

// NewPage opens a target in a new browser context.
func (b *chromedpBrowser) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("browser is closed")
	}

	vp := b.cfg.Viewport
	if !opts.Viewport.IsZero() {
		vp = opts.Viewport
	}

	tabCtx, tabCancel := chromedp.NewContext(b.rootCtx, chromedp.WithNewBrowserContext())
	page := &chromedpPage{
		cfg:     b.cfg,
		ctx:     tabCtx,
		cancel:  tabCancel,
		baseURL: opts.BaseURL,
	}
	if err := allocate(ctx, tabCtx, b.cfg.NavigationTimeout); err != nil {
		tabCancel()
		return nil, wrapBrowserError(err, "open page")
	}
	if err := page.run(ctx, b.cfg.ActionTimeout, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height))); err != nil {
		tabCancel()
		return nil, wrapBrowserError(err, "open page")
	}

	b.track(page)
	return page, nil
}

// track keeps page until it or the browser is closed. b.mu must be held.
func (b *chromedpBrowser) track(page *chromedpPage) {
	b.pages = append(b.pages, page)
	page.onClose = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.pages = slices.DeleteFunc(b.pages, func(p *chromedpPage) bool { return p == page })
	}
}

// Close closes every page and kills the browser.
func (b *chromedpBrowser) Close() error {
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
	b.rootCancel()
	b.allocCancel()
	return nil
}

// Close closes the target and its browser context.
func (p *chromedpPage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cancel()
	p.mu.Unlock()

	if p.onClose != nil {
		p.onClose()
	}
	return nil
}

// run executes actions on the page target, bounded by timeout and ctx.
func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, opts NavigateOptions) (*ActionResult, error) {
	target, err := ResolveURL(p.baseURL, opts.URL)
	if err != nil {
		return nil, err
	}

	var title, location string
	err = p.run(ctx, timeoutOr(opts.Timeout, p.cfg.NavigationTimeout),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, wrapBrowserError(err, "navigate to "+target)
	}
	return &ActionResult{URL: location, Title: title}, nil
}

func (p *chromedpPage) Click(ctx context.Context, opts ClickOptions) error {
	actions := []chromedp.Action{chromedp.WaitVisible(opts.Selector, chromedp.ByQuery)}
	switch {
	case opts.Count == 2:
		actions = append(actions, chromedp.DoubleClick(opts.Selector, chromedp.ByQuery))
	case opts.Button == "right":
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			x, y, err := nodeCenter(ctx, opts.Selector)
			if err != nil {
				return err
			}
			return chromedp.MouseClickXY(x, y, chromedp.ButtonType(input.Right)).Do(ctx)
		}))
	default:
		actions = append(actions, chromedp.Click(opts.Selector, chromedp.ByQuery))
	}
	return wrapBrowserError(p.run(ctx, timeoutOr(opts.Timeout, p.cfg.ActionTimeout), actions...), "click "+opts.Selector)
}

func (p *chromedpPage) Fill(ctx context.Context, opts FillOptions) error {
	err := p.run(ctx, timeoutOr(opts.Timeout, p.cfg.ActionTimeout),
		chromedp.WaitVisible(opts.Selector, chromedp.ByQuery),
		chromedp.Clear(opts.Selector, chromedp.ByQuery),
		chromedp.SendKeys(opts.Selector, opts.Value, chromedp.ByQuery),
	)
	return wrapBrowserError(err, "fill "+opts.Selector)
}

func (p *chromedpPage) Hover(ctx context.Context, opts HoverOptions) error {
	err := p.run(ctx, timeoutOr(opts.Timeout, p.cfg.ActionTimeout),
		chromedp.ActionFunc(func(ctx context.Context) error {
			x, y, err := nodeCenter(ctx, opts.Selector)
			if err != nil {
				return err
			}
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
	return wrapBrowserError(err, "hover "+opts.Selector)
}

// cdpKeys maps Playwright-style key names onto chromedp key sequences.
var cdpKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"ArrowDown":  kb.ArrowDown,
	"ArrowUp":    kb.ArrowUp,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
}

func (p *chromedpPage) Press(ctx context.Context, opts PressOptions) error {
	key, ok := cdpKeys[opts.Key]
	if !ok {
		key = opts.Key
	}
	return wrapBrowserError(p.run(ctx, p.cfg.ActionTimeout, chromedp.KeyEvent(key)), "press "+opts.Key)
}

func (p *chromedpPage) Drag(ctx context.Context, opts DragOptions) error {
	steps := opts.Steps
	if steps <= 0 {
		steps = DefaultDragSteps
	}

	err := p.run(ctx, timeoutOr(opts.Timeout, p.cfg.ActionTimeout),
		chromedp.WaitVisible(opts.Source, chromedp.ByQuery),
		chromedp.WaitVisible(opts.Target, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			fx, fy, err := nodeCenter(ctx, opts.Source)
			if err != nil {
				return err
			}
			tx, ty, err := nodeCenter(ctx, opts.Target)
			if err != nil {
				return err
			}

			if err := input.DispatchMouseEvent(input.MouseMoved, fx, fy).Do(ctx); err != nil {
				return err
			}
			if err := input.DispatchMouseEvent(input.MousePressed, fx, fy).
				WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
				return err
			}
			for i := 1; i <= steps; i++ {
				x := fx + (tx-fx)*float64(i)/float64(steps)
				y := fy + (ty-fy)*float64(i)/float64(steps)
				if err := input.DispatchMouseEvent(input.MouseMoved, x, y).
					WithButton(input.Left).WithButtons(1).Do(ctx); err != nil {
					return err
				}
			}
			return input.DispatchMouseEvent(input.MouseReleased, tx, ty).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
	)
	return wrapBrowserError(err, "drag "+opts.Source)
}

func (p *chromedpPage) SetViewport(ctx context.Context, vp Viewport) error {
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height)))
	return wrapBrowserError(err, "resize to "+vp.String())
}

func (p *chromedpPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const r = el.getBoundingClientRect();
		const s = getComputedStyle(el);
		return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
	})()`, jsString(selector))
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(js, &visible))
	return visible, err
}

func (p *chromedpPage) HasText(ctx context.Context, text string) (bool, error) {
	var found bool
	js := fmt.Sprintf(`!!document.body && document.body.innerText.includes(%s)`, jsString(text))
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(js, &found))
	return found, err
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	js := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(js, &n))
	return n, err
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var location string
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Location(&location))
	return location, err
}

func (p *chromedpPage) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if opts.FullPage {
		action = chromedp.FullScreenshot(&buf, 90)
	}
	if err := p.run(ctx, p.cfg.ActionTimeout, action); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// nodeCenter returns the viewport center of the first node matching selector.
func nodeCenter(ctx context.Context, selector string) (float64, float64, error) {
	var nodes []*cdp.Node
	if err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery).Do(ctx); err != nil {
		return 0, 0, err
	}
	if len(nodes) == 0 {
		return 0, 0, fmt.Errorf("no node matches %s", selector)
	}
	box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
	if err != nil {
		return 0, 0, err
	}
	q := box.Content
	if len(q) < 8 {
		return 0, 0, fmt.Errorf("no clickable area for %s", selector)
	}
	return (q[0] + q[2] + q[4] + q[6]) / 4, (q[1] + q[3] + q[5] + q[7]) / 4, nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
