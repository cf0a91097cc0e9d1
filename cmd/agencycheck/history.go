package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/neboloop/agencycheck/internal/db"
	"github.com/neboloop/agencycheck/internal/report"
)

// HistoryCmd lists past runs or shows one.
func HistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one run's checks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, store, args[0])
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}
			fmt.Printf("%-36s  %-8s  %-19s  %8s  %6s  %6s\n", "ID", "KIND", "STARTED", "DURATION", "PASSED", "FAILED")
			for _, r := range runs {
				status := "\033[32m"
				if r.ExitCode != 0 {
					status = "\033[31m"
				}
				fmt.Printf("%s%-36s\033[0m  %-8s  %-19s  %8s  %6d  %6d\n",
					status, r.ID, r.Kind, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Duration().Round(100*time.Millisecond), r.Passed, r.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.AddCommand(historyPruneCmd())

	return cmd
}

func historyPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d run(s)\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of runs to delete")

	return cmd
}

func openHistoryStore(cmd *cobra.Command) (*db.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path, err := historyPath(cfg)
	if err != nil {
		return nil, err
	}
	return db.NewSQLite(path)
}

func showRun(cmd *cobra.Command, store *db.Store, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		return fmt.Errorf("no run with id %s", id)
	}
	if err != nil {
		return err
	}
	results, err := store.RunChecks(cmd.Context(), id)
	if err != nil {
		return err
	}
	return writeReport(report.Summary{
		Title:     "agencycheck " + run.Kind,
		RunID:     run.ID,
		Kind:      run.Kind,
		StartedAt: run.StartedAt,
		Duration:  run.Duration(),
		Results:   results,
	})
}
