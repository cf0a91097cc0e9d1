package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/browser/browsertest"
	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
)

const testConfig = `
app:
  base_url: http://app.test
  login_path: /login
identities:
  admin: {label: Admin, email: admin@demo.com, landing: /admin}
  client: {label: Client, email: client@demo.com, landing: /client}
  team: {label: Team, email: team@demo.com, landing: /team}
browser:
  driver: playwright
poll:
  timeout: 60ms
  initial: 5ms
  max: 20ms
scenarios:
  enabled: [login, responsive]
  viewports: ["375x667", "1280x800"]
  collection_name: E2E Test Collection
`

type fakeCreds map[string]string

func (c fakeCreds) First(names ...string) (string, error) {
	for _, n := range names {
		if v, ok := c[n]; ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("none of %s set", strings.Join(names, ", "))
}

func testCfg(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(testConfig))
	require.NoError(t, err)
	return cfg
}

// loginApp makes submit land on the identity's dashboard when the password
// is right. wrong lists emails whose login is rejected.
func loginApp(p *browsertest.Page, wrong ...string) {
	landing := map[string]string{
		"admin@demo.com":  "/admin",
		"client@demo.com": "/client",
		"team@demo.com":   "/team",
	}
	p.OnClick = func(p *browsertest.Page, selector string) error {
		if selector != `button[type="submit"]` {
			return nil
		}
		email := p.Value(`input[type="email"]`)
		for _, w := range wrong {
			if w == email {
				return nil
			}
		}
		if p.Value(`input[type="password"]`) == "secret" {
			p.SetURL(landing[email])
		}
		return nil
	}
	p.OnNavigate = func(p *browsertest.Page, url string) error {
		p.Show("body")
		return nil
	}
}

func newRunner(t *testing.T, b browser.Browser) *Runner {
	return &Runner{
		Config:  testCfg(t),
		Browser: b,
		Creds:   fakeCreds{"E2E_DEMO_PASSWORD": "secret"},
		RunID:   "run-1",
	}
}

func TestLoginAllIdentities(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) { loginApp(p) })
	r := newRunner(t, b)

	res := r.Run(context.Background(), Login(r.Config))

	assert.Equal(t, []string{"Admin login", "Client login", "Team login"}, res.Passed())
	assert.Empty(t, res.Failed())
	assert.Equal(t, 0, res.ExitCode())
	require.Len(t, b.Pages, 3)
	for _, p := range b.Pages {
		assert.True(t, p.IsClosed())
	}
	assert.Equal(t, "login", res.Checks[0].Scenario)
	assert.Equal(t, "admin", res.Checks[0].Step)
}

func TestLoginFailureRecorded(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) { loginApp(p, "admin@demo.com") })
	r := newRunner(t, b)

	res := r.Run(context.Background(), Login(r.Config))

	assert.Equal(t, []string{"Admin login failed"}, res.Failed())
	assert.Equal(t, []string{"Client login", "Team login"}, res.Passed())
	assert.Equal(t, res.Total(), len(res.Passed())+len(res.Failed()))
	assert.Equal(t, 1, res.ExitCode())
}

func TestLoginWithoutLandingFails(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) { loginApp(p, "admin@demo.com") })
	r := newRunner(t, b)
	r.Config.Identities = map[string]config.Identity{
		"admin": {Label: "Admin", Email: "admin@demo.com"},
	}

	res := r.Run(context.Background(), Login(r.Config))

	assert.Equal(t, []string{"Admin login failed"}, res.Failed())
	assert.Empty(t, res.Passed())
	assert.Contains(t, res.FailedChecks()[0].Reason, "no expected URL fragment")
}

func TestLoginFillsConfiguredEmail(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) { loginApp(p) })
	r := newRunner(t, b)
	r.Config.Identities = map[string]config.Identity{
		"admin": {Label: "Admin", Email: "admin@demo.com", Landing: "/admin"},
	}

	r.Run(context.Background(), Login(r.Config))

	require.Len(t, b.Pages, 1)
	assert.Equal(t, []string{
		"navigate /login",
		`fill input[type="email"]=admin@demo.com`,
		`fill input[type="password"]=secret`,
		`click button[type="submit"]`,
	}, b.Pages[0].Actions())
}

func TestMissingPasswordAbortsScenario(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) { loginApp(p) })
	r := newRunner(t, b)
	r.Creds = fakeCreds{}

	res := r.Run(context.Background(), Login(r.Config))

	assert.Equal(t, []string{"login: admin aborted"}, res.Failed())
	assert.Empty(t, res.Passed())
	assert.Empty(t, b.Pages)
}

func TestStepErrorAbortsRemainingSteps(t *testing.T) {
	b := browsertest.NewBrowser(nil)
	r := newRunner(t, b)
	var ran []string
	sc := Scenario{Name: "demo", Steps: []Step{
		{Name: "one", Run: func(ctx context.Context, env *Env) (check.Results, error) {
			ran = append(ran, "one")
			var res check.Results
			res.Pass("First")
			return res, nil
		}},
		{Name: "two", Run: func(ctx context.Context, env *Env) (check.Results, error) {
			ran = append(ran, "two")
			var res check.Results
			res.Pass("Before error")
			return res, errors.New("connection refused")
		}},
		{Name: "three", Run: func(ctx context.Context, env *Env) (check.Results, error) {
			ran = append(ran, "three")
			return check.Results{}, nil
		}},
	}}
	next := Scenario{Name: "next", Steps: []Step{
		{Name: "only", Run: func(ctx context.Context, env *Env) (check.Results, error) {
			var res check.Results
			res.Pass("Next ran")
			return res, nil
		}},
	}}

	res := r.Run(context.Background(), sc, next)

	assert.Equal(t, []string{"one", "two"}, ran)
	assert.Equal(t, []string{"First", "Before error", "Next ran"}, res.Passed())
	assert.Equal(t, []string{"demo: two aborted"}, res.Failed())
	failed := res.FailedChecks()
	require.Len(t, failed, 1)
	assert.Equal(t, "connection refused", failed[0].Reason)
}

func TestPanicBecomesScenarioError(t *testing.T) {
	r := newRunner(t, browsertest.NewBrowser(nil))
	sc := Scenario{Name: "boom", Steps: []Step{
		{Name: "explode", Run: func(ctx context.Context, env *Env) (check.Results, error) {
			panic("nil map")
		}},
	}}

	var progress []string
	r.Progress = func(c check.Check) { progress = append(progress, c.Label) }
	res := r.Run(context.Background(), sc)

	assert.Equal(t, []string{"boom: explode aborted"}, res.Failed())
	assert.Contains(t, res.Checks[0].Reason, "panic: nil map")
	assert.Equal(t, []string{"boom: explode aborted"}, progress)
}

func TestPagesClosedAfterAbort(t *testing.T) {
	b := browsertest.NewBrowser(nil)
	r := newRunner(t, b)
	sc := Scenario{Name: "leak", Steps: []Step{
		{Name: "open", Run: func(ctx context.Context, env *Env) (check.Results, error) {
			_, err := env.Page(ctx, "a")
			require.NoError(t, err)
			_, err = env.Page(ctx, "b")
			require.NoError(t, err)
			return check.Results{}, errors.New("stop")
		}},
	}}

	r.Run(context.Background(), sc)

	require.Len(t, b.Pages, 2)
	assert.True(t, b.Pages[0].IsClosed())
	assert.True(t, b.Pages[1].IsClosed())
}

func TestCancelledRunStops(t *testing.T) {
	r := newRunner(t, browsertest.NewBrowser(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx, Login(r.Config))

	assert.Equal(t, []string{"Run interrupted"}, res.Failed())
	assert.Equal(t, 1, res.ExitCode())
}

func TestEmptyRunExitsZero(t *testing.T) {
	r := newRunner(t, browsertest.NewBrowser(nil))
	res := r.Run(context.Background())
	assert.Equal(t, 0, res.Total())
	assert.Equal(t, 0, res.ExitCode())
}

func TestResponsive(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) { loginApp(p) })
	r := newRunner(t, b)

	res := r.Run(context.Background(), Responsive(r.Config))

	assert.Equal(t, []string{"Renders at 375x667", "Renders at 1280x800"}, res.Passed())
	require.Len(t, b.Pages, 1)
	assert.Equal(t, []string{
		"resize 375x667", "navigate /login",
		"resize 1280x800", "navigate /login",
	}, b.Pages[0].Actions())
}

func TestResponsiveBodyMissing(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) {
		p.OnNavigate = func(p *browsertest.Page, url string) error {
			if p.Viewport.Width >= 400 {
				p.Show("body")
			} else {
				p.Hide("body")
			}
			return nil
		}
	})
	r := newRunner(t, b)

	res := r.Run(context.Background(), Responsive(r.Config))

	assert.Equal(t, []string{"Renders at 375x667 failed"}, res.Failed())
	assert.Equal(t, []string{"Renders at 1280x800"}, res.Passed())
}

func TestKanbanDrag(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) {
		loginApp(p)
		p.OnNavigate = func(p *browsertest.Page, url string) error {
			if url == "/admin/tasks" {
				p.Show("[data-status]", `[data-status="todo"] [data-task-id]`)
				p.SetCount(`[data-status="todo"] [data-task-id]`, 2)
				p.SetCount(`[data-status="in_progress"] [data-task-id]`, 1)
			}
			return nil
		}
		p.OnDrag = func(p *browsertest.Page, source, target string) error {
			p.AddCount(source, -1)
			p.AddCount(target+" [data-task-id]", 1)
			return nil
		}
	})
	r := newRunner(t, b)

	res := r.Run(context.Background(), Kanban(r.Config))

	assert.Empty(t, res.Failed())
	assert.Equal(t, []string{"Admin login", "Kanban columns visible", "Task card present", "Task moved to next column"}, res.Passed())
	require.Len(t, b.Pages, 1)
	assert.Contains(t, b.Pages[0].Actions(), `drag [data-status="todo"] [data-task-id] -> [data-status="in_progress"]`)
}

func TestKanbanDropIgnored(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) {
		loginApp(p)
		p.OnNavigate = func(p *browsertest.Page, url string) error {
			p.Show("[data-status]", `[data-status="todo"] [data-task-id]`)
			return nil
		}
	})
	r := newRunner(t, b)

	res := r.Run(context.Background(), Kanban(r.Config))

	assert.Equal(t, []string{"Task moved to next column failed"}, res.Failed())
}

func TestKanbanAbortsWhenLoginFails(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) { loginApp(p, "admin@demo.com") })
	r := newRunner(t, b)

	res := r.Run(context.Background(), Kanban(r.Config))

	assert.Equal(t, []string{"Admin login failed", "kanban: login aborted"}, res.Failed())
	assert.Empty(t, res.Passed())
}

func TestChatDeliversTaggedMessage(t *testing.T) {
	var sent string
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) {
		loginApp(p)
		p.OnNavigate = func(p *browsertest.Page, url string) error {
			p.Show("textarea")
			if url == "/client/messages" && sent != "" {
				p.AddText(sent)
			}
			return nil
		}
		p.OnPress = func(p *browsertest.Page, key string) error {
			if key == "Enter" {
				sent = p.Value("textarea")
				p.AddText(sent)
			}
			return nil
		}
	})
	r := newRunner(t, b)

	res := r.Run(context.Background(), Chat(r.Config))

	assert.Empty(t, res.Failed())
	assert.Equal(t, []string{"Admin login", "Client login", "Chat input visible", "Message sent", "Message received"}, res.Passed())
	assert.Equal(t, "E2E message run-1", sent)
	require.Len(t, b.Pages, 2, "admin and client use separate pages")
}

func TestKnowledgeCollectionLifecycle(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) {
		loginApp(p)
		p.OnClick = func(p *browsertest.Page, selector string) error {
			switch selector {
			case `button[type="submit"]`:
				if name := p.Value(`input[name="name"]`); name != "" {
					p.AddText(name)
				}
				if title := p.Value(`input[name="title"]`); title != "" {
					p.AddText(title)
				}
				if p.Value(`input[type="password"]`) == "secret" {
					p.SetURL("/admin")
				}
			case `[data-testid="confirm-delete"]`:
				p.RemoveText("E2E Test Collection")
			}
			return nil
		}
	})
	r := newRunner(t, b)

	res := r.Run(context.Background(), Knowledge(r.Config))

	assert.Empty(t, res.Failed())
	assert.Equal(t, []string{"Admin login", "Collection created", "Resource added", "Collection deleted"}, res.Passed())
	acts := b.Pages[0].Actions()
	assert.Contains(t, acts, `fill input[name="name"]=E2E Test Collection`)
	assert.Contains(t, acts, `fill input[name="title"]=E2E Resource run-1`)
}

func TestKnowledgeCleanupFailureIsACheck(t *testing.T) {
	b := browsertest.NewBrowser(func(p *browsertest.Page, _ int) {
		loginApp(p)
		p.OnClick = func(p *browsertest.Page, selector string) error {
			switch selector {
			case `button[type="submit"]`:
				if name := p.Value(`input[name="name"]`); name != "" {
					p.AddText(name)
				}
				if title := p.Value(`input[name="title"]`); title != "" {
					p.AddText(title)
				}
				if p.Value(`input[type="password"]`) == "secret" {
					p.SetURL("/admin")
				}
			case `[data-testid="delete-collection"]`:
				return errors.New("element not found")
			}
			return nil
		}
	})
	r := newRunner(t, b)

	res := r.Run(context.Background(), Knowledge(r.Config))

	assert.Equal(t, []string{"Collection deleted failed"}, res.Failed())
	assert.Len(t, res.Passed(), 3)
}

func TestFailedCheckScreenshot(t *testing.T) {
	dir := t.TempDir()
	b := browsertest.NewBrowser(nil)
	r := newRunner(t, b)
	r.Config.Scenarios.Screenshots = true
	r.ArtifactsDir = dir
	sc := Scenario{Name: "shots", Steps: []Step{
		{Name: "look", Run: func(ctx context.Context, env *Env) (check.Results, error) {
			var res check.Results
			page, err := env.Page(ctx, "x")
			if err != nil {
				return res, err
			}
			env.ExpectVisible(ctx, &res, page, "Banner visible", ".banner")
			return res, nil
		}},
	}}

	res := r.Run(context.Background(), sc)

	assert.Equal(t, []string{"Banner visible failed"}, res.Failed())
	_, err := os.Stat(filepath.Join(dir, "shots-banner-visible.png"))
	assert.NoError(t, err)
}

func TestSelect(t *testing.T) {
	cfg := testCfg(t)

	got, err := Select(cfg)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "login", got[0].Name)
	assert.Equal(t, "responsive", got[1].Name)
	assert.Len(t, got[1].Steps, 2)

	got, err = Select(cfg, "Chat", "kanban")
	require.NoError(t, err)
	assert.Equal(t, "chat", got[0].Name)
	assert.Equal(t, "kanban", got[1].Name)

	_, err = Select(cfg, "nope")
	assert.ErrorContains(t, err, `unknown scenario "nope"`)
}

func TestSelectorOverride(t *testing.T) {
	cfg := testCfg(t)
	cfg.Scenarios.Selectors = map[string]string{"login.submit": "#go"}
	b := browsertest.NewBrowser(nil)
	r := newRunner(t, b)
	r.Config = cfg
	r.Config.Identities = map[string]config.Identity{"admin": {Email: "admin@demo.com", Landing: "/admin"}}

	r.Run(context.Background(), Login(cfg))

	assert.Contains(t, b.Pages[0].Actions(), "click #go")
}
