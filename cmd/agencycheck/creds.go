package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/credential"
)

// CredsCmd manages secrets in the OS keychain.
func CredsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage demo passwords and Supabase keys in the OS keychain",
		Long: `Secrets resolve from the environment first (including .env.local and .env),
then from the OS keychain. Values are never printed.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set NAME [VALUE]",
		Short: "Store a secret (reads VALUE from stdin when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			} else {
				v, err := readSecret(cmd, args[0])
				if err != nil {
					return err
				}
				value = v
			}
			if err := credential.Store(args[0], value); err != nil {
				return err
			}
			fmt.Printf("\033[32m✓\033[0m Stored %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a secret from the keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credential.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("\033[32m✓\033[0m Removed %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show which known secrets resolve and from where",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			creds := credential.Resolver{}
			for _, name := range knownSecrets(cfg) {
				if _, source, err := creds.Lookup(name); err == nil {
					fmt.Printf("\033[32m✓\033[0m %-32s %s\n", name, source)
				} else {
					fmt.Printf("\033[2m- %-32s not set\033[0m\n", name)
				}
			}
			return nil
		},
	})

	return cmd
}

// readSecret prompts without echo on a terminal and reads one line from
// piped stdin otherwise.
func readSecret(cmd *cobra.Command, name string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(os.Stderr, "%s: ", name)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read value: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read value: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// knownSecrets lists the Supabase keys then every identity's password keys,
// without duplicates.
func knownSecrets(cfg *config.Config) []string {
	names := []string{
		credential.SupabaseURL,
		credential.SupabaseAnonKey,
		credential.SupabaseServiceKey,
		credential.SupabaseDBURL,
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	for _, name := range cfg.IdentityNames() {
		id, _ := cfg.Identity(name)
		for _, key := range id.PasswordKeys(name) {
			if !seen[key] {
				seen[key] = true
				names = append(names, key)
			}
		}
	}
	return names
}
