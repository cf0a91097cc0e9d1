package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/db"
	"github.com/neboloop/agencycheck/internal/defaults"
	"github.com/neboloop/agencycheck/internal/logging"
	"github.com/neboloop/agencycheck/internal/report"
)

// ErrChecksFailed is returned by commands whose run recorded failures.
// The summary has already been printed, so Execute only sets the exit code.
var ErrChecksFailed = errors.New("checks failed")

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := SetupRootCmd(version).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrChecksFailed) {
			fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		}
		return 1
	}
	return 0
}

// loadConfig loads the suite and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(suiteFile)
	if err != nil {
		return nil, err
	}
	if driverArg != "" {
		cfg.Browser.Driver = driverArg
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if backendArg != "" {
		cfg.Supabase.Backend = backendArg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func historyPath(cfg *config.Config) (string, error) {
	if cfg.History.Path != "" {
		return cfg.History.Path, nil
	}
	dir, err := defaults.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, db.HistoryFile), nil
}

// openHistory returns nil when history is off.
func openHistory(cfg *config.Config) (*db.Store, error) {
	if noHistory || !cfg.History.Enabled {
		return nil, nil
	}
	path, err := historyPath(cfg)
	if err != nil {
		return nil, err
	}
	return db.NewSQLite(path)
}

// progressOut is where live check lines go. Machine-readable reports on
// stdout must not be interleaved with them.
func progressOut() io.Writer {
	if outputFile == "" && (format == "" || format == report.FormatText) {
		return os.Stdout
	}
	return os.Stderr
}

func printProgress(c check.Check) {
	fmt.Fprintln(progressOut(), report.ProgressLine(c))
}

// finish records the run, writes the report and maps failures to
// ErrChecksFailed.
func finish(ctx context.Context, cfg *config.Config, run db.Run, title string, results check.Results) error {
	run.FinishedAt = time.Now()
	run.ExitCode = results.ExitCode()

	store, err := openHistory(cfg)
	if err != nil {
		logging.Warnf("run history unavailable: %v", err)
	} else if store != nil {
		if _, err := store.RecordRun(context.WithoutCancel(ctx), run, results); err != nil {
			logging.Errorf("failed to record run %s: %v", run.ID, err)
		} else {
			logging.Infof("recorded %s run %s", run.Kind, run.ID)
		}
		store.Close()
	}

	summary := report.Summary{
		Title:     title,
		RunID:     run.ID,
		Kind:      run.Kind,
		StartedAt: run.StartedAt,
		Duration:  run.Duration(),
		Results:   results,
	}
	if err := writeReport(summary); err != nil {
		return err
	}
	if run.ExitCode != 0 {
		return ErrChecksFailed
	}
	return nil
}

func writeReport(s report.Summary) error {
	if outputFile == "" {
		return report.Write(os.Stdout, format, s)
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := report.Write(f, format, s); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", outputFile)
	return nil
}
