package cli

import (
	"bufio"
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/neboloop/agencycheck/internal/logging"
	"github.com/neboloop/agencycheck/internal/notify"
	"github.com/neboloop/agencycheck/internal/scenario"
	"github.com/neboloop/agencycheck/internal/watch"
)

// WatchCmd reruns scenarios on a schedule and when the suite file changes.
func WatchCmd() *cobra.Command {
	var schedule string
	var names []string

	cmd := &cobra.Command{
		Use:   "watch [scenario...]",
		Short: "Rerun scenarios on a schedule and on suite changes",
		Long: `Run the scenarios now, then again on every cron tick (watch.schedule or
--schedule) and whenever the --suite file is saved. Runs never overlap: a
trigger during a run queues exactly one follow-up run. With watch.notify set,
a failing run raises a desktop notification. Press Enter to run immediately.

Examples:
  agencycheck watch --suite suite.yaml
  agencycheck watch --schedule "@every 10m" login`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("schedule") {
				schedule = cfg.Watch.Schedule
			}
			if err := watch.ValidateSchedule(schedule); err != nil {
				return err
			}
			names = append(names, args...)
			if _, err := scenario.Select(cfg, names...); err != nil {
				return err
			}

			var files []string
			if suiteFile != "" {
				files = append(files, suiteFile)
			}

			w := &watch.Watcher{
				Schedule:   schedule,
				Files:      files,
				RunOnStart: true,
				Log:        logging.Component("watch"),
				Job: func(ctx context.Context, t watch.Trigger) error {
					// Reload so suite edits take effect on the run they trigger.
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					scenarios, err := scenario.Select(cfg, names...)
					if err != nil {
						return err
					}
					results, err := runScenarios(ctx, cfg, scenarios)
					if errors.Is(err, ErrChecksFailed) {
						if cfg.Watch.Notify {
							notify.Failures("", results)
						}
						return nil
					}
					return err
				},
			}

			// Enter on an interactive stdin queues a run now.
			if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				go func() {
					sc := bufio.NewScanner(f)
					for sc.Scan() {
						w.Fire(watch.ReasonManual)
					}
				}()
			}

			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec or @every duration (default: watch.schedule)")
	cmd.Flags().StringSliceVarP(&names, "scenario", "s", nil, "scenario to run (repeatable)")

	return cmd
}
