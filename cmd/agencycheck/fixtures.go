package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/credential"
	"github.com/neboloop/agencycheck/internal/db"
	"github.com/neboloop/agencycheck/internal/fixtures"
	"github.com/neboloop/agencycheck/internal/logging"
	"github.com/neboloop/agencycheck/internal/pgstore"
	"github.com/neboloop/agencycheck/internal/supabase"
)

// SeedCmd inserts fixture sets.
func SeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [set...]",
		Short: "Insert demo fixtures into Supabase",
		Long: `Insert the configured fixture sets (or the ones named). Each insert is
reported separately; a failed parent skips its children, nothing is rolled back.

Sets: users, services, email, chat, templates, knowledge.

Requires SUPABASE_SERVICE_ROLE_KEY (env, .env.local or keychain).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixtures(cmd, db.KindSeed, "agencycheck seed", func(ctx context.Context, s *fixtures.Seeder) (check.Results, error) {
				return s.Seed(ctx, args...)
			})
		},
	}
}

// VerifyCmd checks fixtures and the storage and realtime services.
func VerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [set...]",
		Short: "Check that fixtures and Supabase services are in place",
		Long: `Check that every fixture table has rows and every demo user exists, then
round-trip a file through storage and wait for a realtime INSERT event.

Sets: users, services, email, chat, templates, knowledge, storage, realtime.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixtures(cmd, db.KindVerify, "agencycheck verify", func(ctx context.Context, s *fixtures.Seeder) (check.Results, error) {
				return s.Verify(ctx, args...)
			})
		},
	}
}

// CleanupCmd removes recently created test data.
func CleanupCmd() *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete fixture rows created within a recent window",
		Long: `Delete rows (children first) and demo-identity auth users created within
--window. Cleanup is best effort: a failed delete is reported and the rest
continue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixtures(cmd, db.KindCleanup, "agencycheck cleanup", func(ctx context.Context, s *fixtures.Seeder) (check.Results, error) {
				w := window
				if !cmd.Flags().Changed("window") {
					w = s.Config.Fixtures.CleanupWindow
				}
				return s.Cleanup(ctx, w)
			})
		},
	}

	cmd.Flags().DurationVar(&window, "window", 0, "age of rows to delete (default: fixtures.cleanup_window)")

	return cmd
}

type fixtureOp func(ctx context.Context, s *fixtures.Seeder) (check.Results, error)

func runFixtures(cmd *cobra.Command, kind, title string, op fixtureOp) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	seeder, err := newSeeder(ctx, cfg, runID)
	if err != nil {
		return err
	}
	defer seeder.Store.Close()

	started := time.Now()
	results, err := op(ctx, seeder)
	if err != nil {
		return err
	}
	for _, c := range results.Checks {
		printProgress(c)
	}

	run := db.Run{
		ID:        runID,
		Kind:      kind,
		Suite:     suiteFile,
		BaseURL:   seederURL(cfg),
		StartedAt: started,
	}
	return finish(ctx, cfg, run, title, results)
}

func seederURL(cfg *config.Config) string {
	if cfg.Supabase.URL != "" {
		return cfg.Supabase.URL
	}
	url, _ := credential.Resolver{}.Get(credential.SupabaseURL)
	return url
}

// newSeeder connects to the project with the service role key. The auth,
// storage and realtime APIs always go through the REST client; table rows
// go through it or straight to Postgres depending on the backend.
func newSeeder(ctx context.Context, cfg *config.Config, runID string) (*fixtures.Seeder, error) {
	creds := credential.Resolver{}

	url := seederURL(cfg)
	if url == "" {
		return nil, fmt.Errorf("supabase url is not set: %w: %s", credential.ErrNoCredential, credential.SupabaseURL)
	}
	key, err := creds.Get(credential.SupabaseServiceKey)
	if err != nil {
		return nil, err
	}
	if err := credential.RequireServiceRole(key); err != nil {
		return nil, err
	}

	log := logging.Component("fixtures").With("run", runID)
	client, err := supabase.New(supabase.Options{
		URL:     url,
		Key:     key,
		Schema:  cfg.Supabase.Schema,
		Timeout: cfg.Supabase.RequestTimeout,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}

	seeder := &fixtures.Seeder{
		Store:    client,
		Admin:    client,
		Files:    client,
		Realtime: fixtures.RealtimeFrom(client),
		Config:   cfg,
		Creds:    creds,
		RunID:    runID,
		Log:      log,
	}

	if cfg.Backend() == config.BackendPostgres {
		dsn := cfg.Supabase.DBURL
		if dsn == "" {
			if dsn, err = creds.Get(credential.SupabaseDBURL); err != nil {
				return nil, err
			}
		}
		pg, err := pgstore.Open(ctx, dsn, cfg.Supabase.Schema)
		if err != nil {
			return nil, err
		}
		seeder.Store = pg
	}

	return seeder, nil
}
