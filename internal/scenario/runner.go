package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/logging"
)

// Runner executes scenarios sequentially against one browser.
type Runner struct {
	Config       *config.Config
	Browser      browser.Browser
	Creds        Credentials
	RunID        string
	ArtifactsDir string
	Log          *slog.Logger

	// Progress, when set, is called for every recorded check.
	Progress func(check.Check)
}

// Run executes scenarios in order and steps top to bottom. A step error or
// panic aborts the rest of its scenario; the run continues with the next one.
func (r *Runner) Run(ctx context.Context, scenarios ...Scenario) check.Results {
	var all check.Results
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			all.Fail("Run interrupted", err.Error())
			r.report(all.Checks[len(all.Checks)-1:])
			break
		}
		res := r.runScenario(ctx, sc)
		all.Merge(res)
	}
	return all
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logging.Component("scenario")
}

func (r *Runner) runScenario(ctx context.Context, sc Scenario) check.Results {
	env := &Env{
		Config:       r.Config,
		Browser:      r.Browser,
		Creds:        r.Creds,
		RunID:        r.RunID,
		ArtifactsDir: r.ArtifactsDir,
		Log:          r.logger().With("scenario", sc.Name),
		scenario:     sc.Name,
	}
	defer env.closePages()

	env.Log.Info("scenario started", "steps", len(sc.Steps))
	var out check.Results
	for _, step := range sc.Steps {
		res, err := runStep(ctx, env, sc.Name, step)
		res = res.Tag(sc.Name, step.Name)
		r.report(res.Checks)
		out.Merge(res)
		if err != nil {
			se := asScenarioError(sc.Name, step.Name, err)
			env.Log.Warn("scenario aborted", "step", step.Name, "error", se.Cause)
			if se.Stack != "" {
				env.Log.Debug("panic stack", "stack", se.Stack)
			}
			var abort check.Results
			abort.Abort(se)
			r.report(abort.Checks)
			out.Merge(abort)
			return out
		}
	}
	env.Log.Info("scenario finished", "passed", len(out.Passed()), "failed", len(out.Failed()))
	return out
}

// runStep calls the step, turning a panic into a ScenarioError.
func runStep(ctx context.Context, env *Env, scenario string, step Step) (res check.Results, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &check.ScenarioError{
				Scenario: scenario,
				Step:     step.Name,
				Cause:    fmt.Errorf("panic: %v", p),
				Stack:    string(debug.Stack()),
			}
		}
	}()
	return step.Run(ctx, env)
}

func asScenarioError(scenario, step string, err error) *check.ScenarioError {
	if se, ok := err.(*check.ScenarioError); ok {
		return se
	}
	return &check.ScenarioError{Scenario: scenario, Step: step, Cause: err}
}

func (r *Runner) report(checks []check.Check) {
	if r.Progress == nil {
		return
	}
	for _, c := range checks {
		r.Progress(c)
	}
}
