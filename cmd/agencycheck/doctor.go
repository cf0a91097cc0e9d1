package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/credential"
	"github.com/neboloop/agencycheck/internal/defaults"
	"github.com/neboloop/agencycheck/internal/keyring"
	"github.com/neboloop/agencycheck/internal/pgstore"
	"github.com/neboloop/agencycheck/internal/supabase"
)

// DoctorCmd creates the doctor command for health checks
func DoctorCmd() *cobra.Command {
	var launch bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and reachability",
		Long: `Run diagnostics before a real run.

Checks:
  - Configuration and data directory
  - Demo passwords and Supabase keys
  - App and Supabase reachability
  - Run history database
  - Browser launch (with --launch)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, launch)
		},
	}

	cmd.Flags().BoolVar(&launch, "launch", false, "also launch and close the browser")

	return cmd
}

type checkResult struct {
	name    string
	status  string // "ok", "warn", "error"
	message string
}

func runDoctor(cmd *cobra.Command, launch bool) error {
	fmt.Println("\033[1m🔍 agencycheck doctor\033[0m")
	fmt.Println("=====================")
	fmt.Println()

	ctx := cmd.Context()
	var results []checkResult

	cfg, err := loadConfig(cmd)
	if err != nil {
		results = append(results, checkResult{"Config", "error", err.Error()})
	} else {
		source := "built-in"
		if suiteFile != "" {
			source = "built-in + " + suiteFile
		}
		results = append(results, checkResult{"Config", "ok", source})
		results = append(results, checkDataDir()...)
		results = append(results, checkPasswords(cfg)...)
		results = append(results, checkSupabase(ctx, cfg)...)
		results = append(results, checkApp(ctx, cfg))
		results = append(results, checkHistory(cfg))
		results = append(results, checkBrowser(ctx, cfg, launch))
	}

	okCount, warnCount, errorCount := 0, 0, 0
	for _, r := range results {
		switch r.status {
		case "ok":
			fmt.Printf("\033[32m✓\033[0m %s: %s\n", r.name, r.message)
			okCount++
		case "warn":
			fmt.Printf("\033[33m⚠\033[0m %s: %s\n", r.name, r.message)
			warnCount++
		case "error":
			fmt.Printf("\033[31m✗\033[0m %s: %s\n", r.name, r.message)
			errorCount++
		}
	}

	// Summary
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  \033[32m%d passed\033[0m", okCount)
	if warnCount > 0 {
		fmt.Printf("  \033[33m%d warnings\033[0m", warnCount)
	}
	if errorCount > 0 {
		fmt.Printf("  \033[31m%d errors\033[0m", errorCount)
	}
	fmt.Println()

	if errorCount > 0 {
		return ErrChecksFailed
	}
	return nil
}

func checkDataDir() []checkResult {
	dir, err := defaults.EnsureDataDir()
	if err != nil {
		return []checkResult{{"Data Directory", "error", err.Error()}}
	}
	results := []checkResult{{"Data Directory", "ok", dir}}
	if keyring.Available() {
		results = append(results, checkResult{"Keychain", "ok", "available"})
	} else {
		results = append(results, checkResult{"Keychain", "warn", "unavailable, secrets must come from env"})
	}
	return results
}

func checkPasswords(cfg *config.Config) []checkResult {
	var results []checkResult
	creds := credential.Resolver{}
	for _, name := range cfg.IdentityNames() {
		id, _ := cfg.Identity(name)
		label := fmt.Sprintf("Identity: %s", name)
		found := false
		for _, key := range id.PasswordKeys(name) {
			if _, source, err := creds.Lookup(key); err == nil {
				results = append(results, checkResult{label, "ok", fmt.Sprintf("%s, password from %s (%s)", id.Email, key, source)})
				found = true
				break
			}
		}
		if !found {
			results = append(results, checkResult{label, "error", fmt.Sprintf("no password: set %s", id.PasswordKeys(name)[0])})
		}
	}
	return results
}

func checkSupabase(ctx context.Context, cfg *config.Config) []checkResult {
	var results []checkResult
	creds := credential.Resolver{}

	url := seederURL(cfg)
	if url == "" {
		return append(results, checkResult{"Supabase", "warn", credential.SupabaseURL + " not set (seed/verify unavailable)"})
	}
	results = append(results, checkResult{"Supabase URL", "ok", url})

	if anon, err := creds.Get(credential.SupabaseAnonKey); err != nil {
		results = append(results, checkResult{"Anon Key", "warn", "not set"})
	} else {
		results = append(results, checkResult{"Anon Key", "ok", maskKey(anon)})
	}

	key, err := creds.Get(credential.SupabaseServiceKey)
	if err != nil {
		return append(results, checkResult{"Service Role Key", "warn", "not set (seed/verify unavailable)"})
	}
	if err := credential.RequireServiceRole(key); err != nil {
		return append(results, checkResult{"Service Role Key", "error", err.Error()})
	}
	results = append(results, checkResult{"Service Role Key", "ok", maskKey(key)})

	client, err := supabase.New(supabase.Options{URL: url, Key: key, Schema: cfg.Supabase.Schema, Timeout: 5 * time.Second})
	if err != nil {
		return append(results, checkResult{"Supabase Auth", "error", err.Error()})
	}
	if _, err := client.ListUsers(ctx, 1, 1); err != nil {
		results = append(results, checkResult{"Supabase Auth", "error", err.Error()})
	} else {
		results = append(results, checkResult{"Supabase Auth", "ok", "admin API reachable"})
	}

	if cfg.Backend() == config.BackendPostgres {
		dsn := cfg.Supabase.DBURL
		if dsn == "" {
			dsn, _ = creds.Get(credential.SupabaseDBURL)
		}
		if dsn == "" {
			return append(results, checkResult{"Postgres", "error", credential.SupabaseDBURL + " not set"})
		}
		pg, err := pgstore.Open(ctx, dsn, cfg.Supabase.Schema)
		if err != nil {
			return append(results, checkResult{"Postgres", "error", err.Error()})
		}
		pg.Close()
		results = append(results, checkResult{"Postgres", "ok", "connected"})
	}
	return results
}

func checkApp(ctx context.Context, cfg *config.Config) checkResult {
	target, err := browser.ResolveURL(cfg.App.BaseURL, cfg.App.LoginPath)
	if err != nil {
		return checkResult{"App", "error", err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return checkResult{"App", "error", fmt.Sprintf("not reachable at %s", target)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return checkResult{"App", "error", fmt.Sprintf("%s returned %d", target, resp.StatusCode)}
	}
	return checkResult{"App", "ok", fmt.Sprintf("%s (%d)", target, resp.StatusCode)}
}

func checkHistory(cfg *config.Config) checkResult {
	if !cfg.History.Enabled {
		return checkResult{"History", "ok", "disabled"}
	}
	store, err := openHistory(cfg)
	if err != nil {
		return checkResult{"History", "warn", err.Error()}
	}
	if store == nil {
		return checkResult{"History", "ok", "disabled"}
	}
	store.Close()
	path, _ := historyPath(cfg)
	return checkResult{"History", "ok", path}
}

func checkBrowser(ctx context.Context, cfg *config.Config, launch bool) checkResult {
	resolved, err := browser.ResolveConfig(cfg.Browser)
	if err != nil {
		return checkResult{"Browser", "error", err.Error()}
	}
	if resolved.Driver == browser.DriverChromedp {
		exe, err := browser.FindChrome(resolved.ExecutablePath)
		if err != nil {
			return checkResult{"Browser", "error", err.Error()}
		}
		if !launch {
			return checkResult{"Browser", "ok", fmt.Sprintf("chromedp, %s at %s", exe.Kind, exe.Path)}
		}
	}
	if !launch {
		return checkResult{"Browser", "ok", fmt.Sprintf("%s, headless=%t (use --launch to start it)", resolved.Driver, resolved.Headless)}
	}
	b, err := browser.Open(ctx, cfg.Browser)
	if err != nil {
		return checkResult{"Browser", "error", err.Error()}
	}
	b.Close()
	return checkResult{"Browser", "ok", fmt.Sprintf("%s launched", resolved.Driver)}
}

func maskKey(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:6] + "..." + key[len(key)-4:]
}
