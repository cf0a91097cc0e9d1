package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neboloop/agencycheck/internal/defaults"
)

// InitCmd writes the sample suite into the data directory.
func InitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directory with a sample suite",
		Long: `Create the data directory (AGENCYCHECK_DATA_DIR or the platform config
dir) and write a sample suite file to copy and edit. Existing files are kept
unless --force is given; run history is never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := defaults.DataDir()
			if err != nil {
				return err
			}
			written, err := defaults.Install(dir, force)
			if err != nil {
				return err
			}
			fmt.Printf("Data directory: %s\n", dir)
			for _, s := range written {
				state := "kept"
				if s.Written {
					state = "written"
				}
				fmt.Printf("  %-8s %s\n", state, s.Path)
			}
			fmt.Printf("\nRun with: agencycheck run --suite %s\n", filepath.Join(dir, defaults.SuiteFile))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite the sample suite with the built-in one")

	return cmd
}
