package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/credential"
	"github.com/neboloop/agencycheck/internal/db"
	"github.com/neboloop/agencycheck/internal/defaults"
	"github.com/neboloop/agencycheck/internal/logging"
	"github.com/neboloop/agencycheck/internal/scenario"
)

// RunCmd runs browser scenarios.
func RunCmd() *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run browser scenarios against the app",
		Long: `Run the enabled scenarios (or the ones named) in order against app.base_url.

Scenarios: login, kanban, chat, knowledge, responsive.

Examples:
  agencycheck run                       # every enabled scenario
  agencycheck run login responsive      # just these two
  agencycheck run --headless=false      # watch it happen
  agencycheck run -f html -o report.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			scenarios, err := scenario.Select(cfg, append(names, args...)...)
			if err != nil {
				return err
			}
			_, err = runScenarios(cmd.Context(), cfg, scenarios)
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&names, "scenario", "s", nil, "scenario to run (repeatable)")

	return cmd
}

// runScenarios opens one browser, runs scenarios through it and reports.
func runScenarios(ctx context.Context, cfg *config.Config, scenarios []scenario.Scenario) (check.Results, error) {
	runID := uuid.NewString()
	started := time.Now()

	var artifacts string
	if cfg.Scenarios.Screenshots {
		dir, err := defaults.ArtifactsDir(runID)
		if err != nil {
			logging.Warnf("screenshots disabled: %v", err)
		} else {
			artifacts = dir
		}
	}

	b, err := browser.Open(ctx, cfg.Browser)
	if err != nil {
		return check.Results{}, fmt.Errorf("failed to open browser: %w", err)
	}
	defer b.Close()

	runner := &scenario.Runner{
		Config:       cfg,
		Browser:      b,
		Creds:        credential.Resolver{},
		RunID:        runID,
		ArtifactsDir: artifacts,
		Log:          logging.Component("scenario").With("run", runID),
		Progress:     printProgress,
	}
	results := runner.Run(ctx, scenarios...)

	driver := cfg.Browser.Driver
	if driver == "" {
		driver = browser.DriverPlaywright
	}
	run := db.Run{
		ID:           runID,
		Kind:         db.KindScenarios,
		Suite:        suiteFile,
		BaseURL:      cfg.App.BaseURL,
		Driver:       driver,
		ArtifactsDir: artifacts,
		StartedAt:    started,
	}
	return results, finish(ctx, cfg, run, "agencycheck run", results)
}
