package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/agencycheck/internal/browser"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"E2E_BASE_URL", "E2E_BROWSER_DRIVER", "E2E_HEADLESS", "E2E_FIXTURE_BACKEND", "E2E_SCENARIOS", "E2E_POLL_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://demo.supabase.co")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", c.App.BaseURL)
	assert.Equal(t, "/login", c.App.LoginPath)
	assert.Equal(t, "https://demo.supabase.co", c.Supabase.URL)
	assert.Equal(t, BackendREST, c.Backend())
	assert.Equal(t, 10*time.Second, c.Browser.ActionTimeout)
	assert.Equal(t, 5*time.Minute, c.Fixtures.CleanupWindow)
	assert.True(t, c.Browser.Headless)
	assert.Equal(t, []string{"admin", "client", "team"}, c.IdentityNames())
	assert.Len(t, c.Viewports(), 4)
	assert.Equal(t, browser.Viewport{Width: 375, Height: 667}, c.Viewports()[0])

	admin, err := c.Identity("admin")
	require.NoError(t, err)
	assert.Equal(t, "admin@demo.com", admin.Email)
	assert.Equal(t, "/admin", admin.Landing)
}

func TestLoadSuiteOverlay(t *testing.T) {
	clearEnv(t)
	suite := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(suite, []byte(`
app:
  base_url: http://localhost:3003
scenarios:
  enabled: [login]
  selectors:
    login.email: "#email"
browser:
  headless: false
`), 0o644))

	c, err := Load(suite)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3003", c.App.BaseURL)
	assert.Equal(t, "/login", c.App.LoginPath, "untouched keys keep defaults")
	assert.Equal(t, []string{"login"}, c.Scenarios.Enabled)
	assert.Equal(t, "#email", c.Selector("login.email", "input[type=email]"))
	assert.Equal(t, "button", c.Selector("login.submit", "button"))
	assert.False(t, c.Browser.Headless)
	assert.Equal(t, "E2E Test Collection", c.Scenarios.CollectionName)
}

func TestSuiteOverlayMergesIdentityFields(t *testing.T) {
	clearEnv(t)
	suite := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(suite, []byte(`
identities:
  admin:
    email: boss@agency.test
  reviewer:
    email: reviewer@agency.test
    landing: /review
`), 0o644))

	c, err := Load(suite)
	require.NoError(t, err)

	admin, err := c.Identity("admin")
	require.NoError(t, err)
	assert.Equal(t, "boss@agency.test", admin.Email)
	assert.Equal(t, "/admin", admin.Landing)
	assert.Equal(t, "Admin", admin.Label)

	client, err := c.Identity("client")
	require.NoError(t, err)
	assert.Equal(t, "client@demo.com", client.Email)

	reviewer, err := c.Identity("reviewer")
	require.NoError(t, err)
	assert.Equal(t, "/review", reviewer.Landing)
	assert.Equal(t, "Reviewer", reviewer.Label)
}

func TestIdentityWithoutLandingRejected(t *testing.T) {
	clearEnv(t)
	suite := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(suite, []byte(`
identities:
  reviewer:
    email: reviewer@agency.test
`), 0o644))

	_, err := Load(suite)
	assert.ErrorContains(t, err, "identities.reviewer.landing is required")
}

func TestEnvOverridesWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("E2E_BASE_URL", "http://staging.local")
	t.Setenv("E2E_BROWSER_DRIVER", "chromedp")
	t.Setenv("E2E_HEADLESS", "no")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://staging.local", c.App.BaseURL)
	assert.Equal(t, "chromedp", c.Browser.Driver)
	assert.False(t, c.Browser.Headless)
}

func TestEnvScenariosAndPollTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("E2E_SCENARIOS", "login, responsive,")
	t.Setenv("E2E_POLL_TIMEOUT", "45s")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"login", "responsive"}, c.Scenarios.Enabled)
	assert.Equal(t, 45*time.Second, c.Poll.Timeout)
}

func TestEnvRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("E2E_POLL_TIMEOUT", "soon")

	_, err := Load("")
	assert.ErrorContains(t, err, "parse env")
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	require.NoError(t, err)

	bad := *c
	bad.Scenarios.Viewports = []string{"wide"}
	assert.ErrorContains(t, bad.Validate(), "viewports")

	bad = *c
	bad.Supabase.Backend = "mongo"
	assert.ErrorContains(t, bad.Validate(), "supabase.backend")

	bad = *c
	bad.Browser.Driver = "selenium"
	assert.ErrorContains(t, bad.Validate(), "unknown browser driver")

	bad = *c
	bad.App.BaseURL = ""
	assert.ErrorContains(t, bad.Validate(), "base_url")
}

func TestMissingSuiteFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read suite")
}

func TestPasswordKeys(t *testing.T) {
	id := Identity{PasswordKey: "ADMIN_PW"}
	assert.Equal(t, []string{"ADMIN_PW", "E2E_ADMIN_PASSWORD", "E2E_DEMO_PASSWORD"}, id.PasswordKeys("admin"))
	assert.Equal(t, []string{"E2E_CLIENT_PASSWORD", "E2E_DEMO_PASSWORD"}, Identity{}.PasswordKeys("client"))
}

func TestUnknownIdentity(t *testing.T) {
	c := &Config{Identities: map[string]Identity{"admin": {Email: "a@b.c"}}}
	_, err := c.Identity("owner")
	assert.ErrorContains(t, err, "unknown identity")

	id, err := c.Identity("admin")
	require.NoError(t, err)
	assert.Equal(t, "Admin", id.Label)
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("YES", false))
	assert.False(t, parseBool("0", true))
	assert.True(t, parseBool("maybe", true))
}
