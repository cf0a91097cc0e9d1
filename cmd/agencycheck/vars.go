package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neboloop/agencycheck/internal/logging"
	"github.com/neboloop/agencycheck/internal/report"
)

// Shared CLI flags (used across multiple command files)
var (
	suiteFile  string
	verbose    bool
	quiet      bool
	format     string
	outputFile string
	driverArg  string
	headless   bool
	backendArg string
	noHistory  bool
)

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agencycheck",
		Short: "agencycheck - end-to-end checks for the agency portal",
		Long: `agencycheck drives a real browser through the agency portal (login,
kanban, chat, knowledge hub, responsive layouts) and seeds or verifies the
Supabase fixtures those flows depend on.

Every command prints a pass/fail summary and exits 0 only when nothing failed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetVerbose(verbose)
			logging.SetOutput(os.Stderr)
			if quiet {
				logging.Disable()
			}
			format = strings.ToLower(format)
			if !slices.Contains(report.Formats(), format) {
				return fmt.Errorf("unknown format %q (have: %s)", format, strings.Join(report.Formats(), ", "))
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&suiteFile, "suite", os.Getenv("AGENCYCHECK_SUITE"), "suite file laid over the built-in config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress log lines (results are still printed)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", report.FormatText, "report format: text, json, markdown, html")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write the report to a file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&driverArg, "driver", "", "browser driver: playwright or chromedp")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "run the browser without a window")
	rootCmd.PersistentFlags().StringVar(&backendArg, "backend", "", "fixture backend: rest or postgres")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not record this run in the history database")

	// Add commands
	rootCmd.AddCommand(RunCmd())
	rootCmd.AddCommand(SeedCmd())
	rootCmd.AddCommand(VerifyCmd())
	rootCmd.AddCommand(CleanupCmd())
	rootCmd.AddCommand(HistoryCmd())
	rootCmd.AddCommand(WatchCmd())
	rootCmd.AddCommand(DoctorCmd())
	rootCmd.AddCommand(CredsCmd())
	rootCmd.AddCommand(InitCmd())

	return rootCmd
}
