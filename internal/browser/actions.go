package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Navigate navigates to a URL.
func (p *playwrightPage) Navigate(ctx context.Context, opts NavigateOptions) (*ActionResult, error) {
	if err := p.ready(ctx); err != nil {
		return nil, err
	}

	target, err := ResolveURL(p.baseURL, opts.URL)
	if err != nil {
		return nil, err
	}

	waitUntil := playwright.WaitUntilStateLoad
	switch opts.WaitUntil {
	case "domcontentloaded":
		waitUntil = playwright.WaitUntilStateDomcontentloaded
	case "networkidle":
		waitUntil = playwright.WaitUntilStateNetworkidle
	}

	timeout := timeoutOr(opts.Timeout, p.cfg.NavigationTimeout)
	if _, err := p.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return nil, wrapBrowserError(err, "navigate to "+target)
	}

	title, _ := p.page.Title()
	return &ActionResult{URL: p.page.URL(), Title: title}, nil
}

// Click clicks the first element matching the selector.
func (p *playwrightPage) Click(ctx context.Context, opts ClickOptions) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	button := playwright.MouseButtonLeft
	switch opts.Button {
	case "right":
		button = playwright.MouseButtonRight
	case "middle":
		button = playwright.MouseButtonMiddle
	}

	clickCount := opts.Count
	if clickCount == 0 {
		clickCount = 1
	}

	timeout := timeoutOr(opts.Timeout, p.cfg.ActionTimeout)
	err := p.page.Locator(opts.Selector).First().Click(playwright.LocatorClickOptions{
		Button:     button,
		ClickCount: playwright.Int(clickCount),
		Timeout:    playwright.Float(float64(timeout.Milliseconds())),
	})
	return wrapBrowserError(err, "click "+opts.Selector)
}

// Fill clears an input and types the value.
func (p *playwrightPage) Fill(ctx context.Context, opts FillOptions) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	timeout := timeoutOr(opts.Timeout, p.cfg.ActionTimeout)
	err := p.page.Locator(opts.Selector).First().Fill(opts.Value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return wrapBrowserError(err, "fill "+opts.Selector)
}

// Hover hovers over an element.
func (p *playwrightPage) Hover(ctx context.Context, opts HoverOptions) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	timeout := timeoutOr(opts.Timeout, p.cfg.ActionTimeout)
	err := p.page.Locator(opts.Selector).First().Hover(playwright.LocatorHoverOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return wrapBrowserError(err, "hover "+opts.Selector)
}

// Press presses a keyboard key on the focused element.
func (p *playwrightPage) Press(ctx context.Context, opts PressOptions) error {
	if err := p.ready(ctx); err != nil {
		return err
	}
	return wrapBrowserError(p.page.Keyboard().Press(opts.Key), "press "+opts.Key)
}

// Drag moves the mouse from the center of Source to the center of Target
// with the button held. Stepped moves let pointer-sensor DnD libraries
// (dnd-kit, react-beautiful-dnd) register the drag.
func (p *playwrightPage) Drag(ctx context.Context, opts DragOptions) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	timeout := timeoutOr(opts.Timeout, p.cfg.ActionTimeout)
	steps := opts.Steps
	if steps <= 0 {
		steps = DefaultDragSteps
	}

	src := p.page.Locator(opts.Source).First()
	dst := p.page.Locator(opts.Target).First()

	waitOpts := playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}
	if err := src.WaitFor(waitOpts); err != nil {
		return wrapBrowserError(err, "drag source "+opts.Source)
	}
	if err := dst.WaitFor(waitOpts); err != nil {
		return wrapBrowserError(err, "drag target "+opts.Target)
	}

	from, err := src.BoundingBox()
	if err != nil || from == nil {
		return fmt.Errorf("drag source %s has no bounding box: %v", opts.Source, err)
	}
	to, err := dst.BoundingBox()
	if err != nil || to == nil {
		return fmt.Errorf("drag target %s has no bounding box: %v", opts.Target, err)
	}

	mouse := p.page.Mouse()
	fx, fy := from.X+from.Width/2, from.Y+from.Height/2
	tx, ty := to.X+to.Width/2, to.Y+to.Height/2

	if err := mouse.Move(fx, fy); err != nil {
		return wrapBrowserError(err, "drag")
	}
	if err := mouse.Down(); err != nil {
		return wrapBrowserError(err, "drag")
	}
	// nudge past the activation distance before the long move
	if err := mouse.Move(fx+8, fy+8, playwright.MouseMoveOptions{Steps: playwright.Int(2)}); err != nil {
		return wrapBrowserError(err, "drag")
	}
	if err := mouse.Move(tx, ty, playwright.MouseMoveOptions{Steps: playwright.Int(steps)}); err != nil {
		return wrapBrowserError(err, "drag")
	}
	return wrapBrowserError(mouse.Up(), "drag")
}

// SetViewport resizes the page.
func (p *playwrightPage) SetViewport(ctx context.Context, vp Viewport) error {
	if err := p.ready(ctx); err != nil {
		return err
	}
	return wrapBrowserError(p.page.SetViewportSize(vp.Width, vp.Height), "resize to "+vp.String())
}

// IsVisible reports whether the first match is visible right now.
func (p *playwrightPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := p.ready(ctx); err != nil {
		return false, err
	}
	return p.page.Locator(selector).First().IsVisible()
}

// HasText reports whether an element containing text is visible right now.
func (p *playwrightPage) HasText(ctx context.Context, text string) (bool, error) {
	if err := p.ready(ctx); err != nil {
		return false, err
	}
	return p.page.GetByText(text).First().IsVisible()
}

// Count returns the number of elements matching the selector.
func (p *playwrightPage) Count(ctx context.Context, selector string) (int, error) {
	if err := p.ready(ctx); err != nil {
		return 0, err
	}
	return p.page.Locator(selector).Count()
}

// URL returns the current page URL.
func (p *playwrightPage) URL(ctx context.Context) (string, error) {
	if err := p.ready(ctx); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

// Screenshot captures the page as PNG.
func (p *playwrightPage) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	if err := p.ready(ctx); err != nil {
		return nil, err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(opts.FullPage),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}
