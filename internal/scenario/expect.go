package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/check"
)

// expect polls cond and records label as passed, or "<label> failed".
func (e *Env) expect(ctx context.Context, r *check.Results, page browser.Page, label string, cond func(context.Context) (bool, error)) bool {
	err := check.Poll(ctx, e.pollOptions(), cond)
	if err == nil {
		r.Pass(label)
		return true
	}
	r.RecordFailure(check.StepFailure{Step: label, Reason: err.Error()})
	e.capture(ctx, page, label)
	return false
}

// ExpectVisible waits for selector to be visible.
func (e *Env) ExpectVisible(ctx context.Context, r *check.Results, page browser.Page, label, selector string) bool {
	return e.expect(ctx, r, page, label, func(ctx context.Context) (bool, error) {
		return page.IsVisible(ctx, selector)
	})
}

// ExpectText waits for an element containing text to be visible.
func (e *Env) ExpectText(ctx context.Context, r *check.Results, page browser.Page, label, text string) bool {
	return e.expect(ctx, r, page, label, func(ctx context.Context) (bool, error) {
		return page.HasText(ctx, text)
	})
}

// ExpectNoText waits for text to disappear.
func (e *Env) ExpectNoText(ctx context.Context, r *check.Results, page browser.Page, label, text string) bool {
	return e.expect(ctx, r, page, label, func(ctx context.Context) (bool, error) {
		found, err := page.HasText(ctx, text)
		return !found, err
	})
}

// ExpectURL waits for the page URL to contain fragment. An empty fragment
// matches every URL and is recorded as a failure.
func (e *Env) ExpectURL(ctx context.Context, r *check.Results, page browser.Page, label, fragment string) bool {
	if strings.TrimSpace(fragment) == "" {
		r.RecordFailure(check.StepFailure{Step: label, Reason: "no expected URL fragment"})
		return false
	}
	var last string
	ok := e.expect(ctx, r, page, label, func(ctx context.Context) (bool, error) {
		u, err := page.URL(ctx)
		last = u
		return strings.Contains(u, fragment), err
	})
	if !ok {
		e.Log.Info("url mismatch", "want", fragment, "got", last)
	}
	return ok
}

// ExpectCount waits for selector to match exactly n elements.
func (e *Env) ExpectCount(ctx context.Context, r *check.Results, page browser.Page, label, selector string, n int) bool {
	var last int
	ok := e.expect(ctx, r, page, label, func(ctx context.Context) (bool, error) {
		c, err := page.Count(ctx, selector)
		last = c
		return c == n, err
	})
	if !ok {
		e.Log.Info("count mismatch", "selector", selector, "want", n, "got", last)
	}
	return ok
}

// Login signs identity in on its own page and checks it lands on the
// identity's landing path. ok is false when the landing check failed.
func (e *Env) Login(ctx context.Context, r *check.Results, identity string) (page browser.Page, ok bool, err error) {
	id, err := e.Config.Identity(identity)
	if err != nil {
		return nil, false, err
	}
	password, err := e.Creds.First(id.PasswordKeys(identity)...)
	if err != nil {
		return nil, false, fmt.Errorf("%s password: %w", id.Label, err)
	}

	page, err = e.Page(ctx, identity)
	if err != nil {
		return nil, false, err
	}
	if err := e.Goto(ctx, page, e.Config.App.LoginPath); err != nil {
		return page, false, err
	}
	if err := page.Fill(ctx, browser.FillOptions{Selector: e.Selector("login.email", `input[type="email"]`), Value: id.Email}); err != nil {
		return page, false, err
	}
	if err := page.Fill(ctx, browser.FillOptions{Selector: e.Selector("login.password", `input[type="password"]`), Value: password}); err != nil {
		return page, false, err
	}
	if err := page.Click(ctx, browser.ClickOptions{Selector: e.Selector("login.submit", `button[type="submit"]`)}); err != nil {
		return page, false, err
	}

	ok = e.ExpectURL(ctx, r, page, id.Label+" login", id.Landing)
	return page, ok, nil
}

// MustLogin is Login for scenarios that can't continue logged out.
func (e *Env) MustLogin(ctx context.Context, r *check.Results, identity string) (browser.Page, error) {
	page, ok, err := e.Login(ctx, r, identity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s is not logged in", identity)
	}
	return page, nil
}
