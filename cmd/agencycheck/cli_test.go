package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/db"
	"github.com/neboloop/agencycheck/internal/report"
)

func setup(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("AGENCYCHECK_DATA_DIR", t.TempDir())
	t.Setenv("AGENCYCHECK_SUITE", "")
	t.Setenv("AGENCYCHECK_KEYRING_DISABLED", "1")
	for _, k := range []string{"E2E_BASE_URL", "E2E_BROWSER_DRIVER", "E2E_HEADLESS", "E2E_FIXTURE_BACKEND", "E2E_SCENARIOS", "E2E_POLL_TIMEOUT"} {
		t.Setenv(k, "")
	}
	t.Cleanup(func() {
		suiteFile, format, outputFile = "", report.FormatText, ""
		driverArg, backendArg, noHistory = "", "", false
	})
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "eyJhbG...wxyz", maskKey("eyJhbGciOiJIUzI1NiJ9.abcdefghijklmnopqrstuvwxyz"))
}

func TestKnownSecretsDedupes(t *testing.T) {
	cfg := setup(t)

	names := knownSecrets(cfg)
	assert.Equal(t, []string{
		"NEXT_PUBLIC_SUPABASE_URL",
		"NEXT_PUBLIC_SUPABASE_ANON_KEY",
		"SUPABASE_SERVICE_ROLE_KEY",
		"SUPABASE_DB_URL",
		"E2E_ADMIN_PASSWORD",
		"E2E_DEMO_PASSWORD",
		"E2E_CLIENT_PASSWORD",
		"E2E_TEAM_PASSWORD",
	}, names)
}

func TestFinishRecordsHistoryAndReport(t *testing.T) {
	cfg := setup(t)
	format = report.FormatJSON
	outputFile = filepath.Join(t.TempDir(), "report.json")

	var results check.Results
	results.Pass("Admin login")
	results.Fail("Client login failed", "condition not met before deadline")

	started := time.Now().Add(-2 * time.Second)
	run := db.Run{ID: "run-1", Kind: db.KindScenarios, BaseURL: cfg.App.BaseURL, StartedAt: started}
	err := finish(context.Background(), cfg, run, "agencycheck run", results)
	require.ErrorIs(t, err, ErrChecksFailed)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var rep struct {
		RunID    string   `json:"run_id"`
		Failed   []string `json:"failed"`
		ExitCode int      `json:"exit_code"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, []string{"Client login failed"}, rep.Failed)
	assert.Equal(t, 1, rep.ExitCode)

	path, err := historyPath(cfg)
	require.NoError(t, err)
	store, err := db.NewSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 1, got.ExitCode)
}

func TestFinishPassesWithoutHistory(t *testing.T) {
	cfg := setup(t)
	noHistory = true
	outputFile = filepath.Join(t.TempDir(), "report.md")
	format = report.FormatMarkdown

	var results check.Results
	results.Pass("Table services has rows")

	run := db.Run{ID: "run-2", Kind: db.KindVerify, StartedAt: time.Now()}
	require.NoError(t, finish(context.Background(), cfg, run, "agencycheck verify", results))

	path, err := historyPath(cfg)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "history db must not be created")
}

func TestProgressOutFollowsFormat(t *testing.T) {
	setup(t)
	assert.Equal(t, os.Stdout, progressOut())

	format = report.FormatJSON
	assert.Equal(t, os.Stderr, progressOut())

	format, outputFile = report.FormatText, "report.txt"
	assert.Equal(t, os.Stderr, progressOut())
}

func TestUnknownFormatRejected(t *testing.T) {
	setup(t)

	root := SetupRootCmd("test")
	root.SetArgs([]string{"history", "--format", "xml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestHistoryCommandOnEmptyDatabase(t *testing.T) {
	setup(t)

	root := SetupRootCmd("test")
	root.SetArgs([]string{"history", "--limit", "5"})
	require.NoError(t, root.Execute())
}

func TestHistoryShowUnknownRun(t *testing.T) {
	setup(t)

	root := SetupRootCmd("test")
	root.SetArgs([]string{"history", "nope"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run with id nope")
}

func TestSeedWithoutServiceKeyFails(t *testing.T) {
	setup(t)
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://demo.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")

	root := SetupRootCmd("test")
	root.SetArgs([]string{"seed"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_SERVICE_ROLE_KEY")
}

func TestSeedRejectsAnonKey(t *testing.T) {
	setup(t)
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://demo.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "sb_publishable_abc123")

	root := SetupRootCmd("test")
	root.SetArgs([]string{"seed"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want service_role")
}

func TestInitWritesSampleSuite(t *testing.T) {
	setup(t)
	dir := os.Getenv("AGENCYCHECK_DATA_DIR")
	suite := filepath.Join(dir, "suite.yaml")

	root := SetupRootCmd("test")
	root.SetArgs([]string{"init"})
	require.NoError(t, root.Execute())
	assert.FileExists(t, suite)
	assert.NoFileExists(t, filepath.Join(dir, "config.yaml"))

	require.NoError(t, os.WriteFile(suite, []byte("app: {}\n"), 0644))
	root = SetupRootCmd("test")
	root.SetArgs([]string{"init", "--force"})
	require.NoError(t, root.Execute())
	data, err := os.ReadFile(suite)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scenarios:")
}

func TestReadSecretFromPipe(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("  s3cret \n"))
	v, err := readSecret(cmd, "E2E_ADMIN_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	cmd.SetIn(strings.NewReader(""))
	_, err = readSecret(cmd, "E2E_ADMIN_PASSWORD")
	assert.ErrorContains(t, err, "failed to read value")
}
