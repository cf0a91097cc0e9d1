package scenario

import (
	"context"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
)

// Responsive loads the login page at each configured viewport and expects
// the body to render.
func Responsive(cfg *config.Config) Scenario {
	sc := Scenario{
		Name:        "responsive",
		Description: "The login page renders at every configured viewport",
	}
	for _, vp := range cfg.Viewports() {
		sc.Steps = append(sc.Steps, Step{
			Name: vp.String(),
			Run: func(ctx context.Context, env *Env) (check.Results, error) {
				return renderAt(ctx, env, vp)
			},
		})
	}
	return sc
}

func renderAt(ctx context.Context, env *Env, vp browser.Viewport) (check.Results, error) {
	var r check.Results
	page, err := env.Page(ctx, "responsive")
	if err != nil {
		return r, err
	}
	if err := page.SetViewport(ctx, vp); err != nil {
		return r, err
	}
	if err := env.Goto(ctx, page, env.Config.App.LoginPath); err != nil {
		return r, err
	}
	env.ExpectVisible(ctx, &r, page, "Renders at "+vp.String(), "body")
	return r, nil
}
