package config

import (
	"fmt"
	"maps"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/defaults"
)

// Storage backends for fixtures
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

type Config struct {
	App        AppConfig           `yaml:"app"`
	Identities map[string]Identity `yaml:"identities"`
	Browser    browser.Config      `yaml:"browser"`
	Poll       PollConfig          `yaml:"poll"`
	Scenarios  ScenarioConfig      `yaml:"scenarios"`
	Supabase   SupabaseConfig      `yaml:"supabase"`
	Fixtures   FixtureConfig       `yaml:"fixtures"`
	History    HistoryConfig       `yaml:"history"`
	Watch      WatchConfig         `yaml:"watch"`
}

type AppConfig struct {
	BaseURL   string `yaml:"base_url"`
	LoginPath string `yaml:"login_path"`
}

// Identity is a demo user the scenarios log in as.
type Identity struct {
	Label   string `yaml:"label"`
	Email   string `yaml:"email"`
	Landing string `yaml:"landing"`
	// PasswordKey names the credential holding the password.
	PasswordKey string `yaml:"password_key,omitempty"`
	FullName    string `yaml:"full_name,omitempty"`
}

type PollConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
}

type ScenarioConfig struct {
	Enabled        []string          `yaml:"enabled"`
	Viewports      []string          `yaml:"viewports"`
	CollectionName string            `yaml:"collection_name"`
	Screenshots    bool              `yaml:"screenshots"`
	Selectors      map[string]string `yaml:"selectors,omitempty"`
}

type SupabaseConfig struct {
	URL            string        `yaml:"url"`
	DBURL          string        `yaml:"db_url"`
	Backend        string        `yaml:"backend"`
	Schema         string        `yaml:"schema"`
	Bucket         string        `yaml:"bucket"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type FixtureConfig struct {
	Sets          []string      `yaml:"sets"`
	CleanupWindow time.Duration `yaml:"cleanup_window"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type WatchConfig struct {
	Schedule string `yaml:"schedule"`
	// Notify raises a desktop notification when a watch run fails.
	Notify bool `yaml:"notify"`
}

// LoadFromBytes loads configuration from YAML bytes with environment variable expansion
func LoadFromBytes(data []byte) (*Config, error) {
	c := &Config{}
	if err := overlay(c, data); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the embedded defaults, lays the suite file (if any) over them,
// then applies E2E_* environment overrides.
func Load(suitePath string) (*Config, error) {
	base, err := defaults.BaseConfig()
	if err != nil {
		return nil, fmt.Errorf("read embedded config: %w", err)
	}
	c, err := LoadFromBytes(base)
	if err != nil {
		return nil, fmt.Errorf("parse embedded config: %w", err)
	}

	if suitePath != "" {
		data, err := os.ReadFile(suitePath)
		if err != nil {
			return nil, fmt.Errorf("read suite %s: %w", suitePath, err)
		}
		if err := overlay(c, data); err != nil {
			return nil, fmt.Errorf("parse suite %s: %w", suitePath, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// overlay decodes YAML onto c; keys absent from data keep their value.
func overlay(c *Config, data []byte) error {
	expanded := []byte(os.ExpandEnv(string(data)))
	prev := maps.Clone(c.Identities)
	if err := yaml.Unmarshal(expanded, c); err != nil {
		return err
	}

	// yaml.v3 decodes map values from zero, which would drop the fields of
	// an identity the overlay only partly sets. Decode those onto the
	// previous value instead.
	var partial struct {
		Identities map[string]yaml.Node `yaml:"identities"`
	}
	if err := yaml.Unmarshal(expanded, &partial); err != nil {
		return err
	}
	for name, node := range partial.Identities {
		id, ok := prev[name]
		if !ok {
			continue
		}
		if err := node.Decode(&id); err != nil {
			return fmt.Errorf("identities.%s: %w", name, err)
		}
		c.Identities[name] = id
	}
	return nil
}

// envOverrides are E2E_* variables; they win over both YAML layers.
type envOverrides struct {
	BaseURL     string        `env:"E2E_BASE_URL"`
	Driver      string        `env:"E2E_BROWSER_DRIVER"`
	Headless    string        `env:"E2E_HEADLESS"`
	Backend     string        `env:"E2E_FIXTURE_BACKEND"`
	Scenarios   []string      `env:"E2E_SCENARIOS" envSeparator:","`
	PollTimeout time.Duration `env:"E2E_POLL_TIMEOUT"`
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.BaseURL != "" {
		c.App.BaseURL = o.BaseURL
	}
	if o.Driver != "" {
		c.Browser.Driver = o.Driver
	}
	if o.Headless != "" {
		c.Browser.Headless = parseBool(o.Headless, c.Browser.Headless)
	}
	if o.Backend != "" {
		c.Supabase.Backend = o.Backend
	}
	if len(o.Scenarios) > 0 {
		c.Scenarios.Enabled = c.Scenarios.Enabled[:0]
		for _, name := range o.Scenarios {
			if name = strings.TrimSpace(name); name != "" {
				c.Scenarios.Enabled = append(c.Scenarios.Enabled, name)
			}
		}
	}
	if o.PollTimeout > 0 {
		c.Poll.Timeout = o.PollTimeout
	}
	return nil
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if c.App.BaseURL == "" {
		return fmt.Errorf("config: app.base_url is required")
	}
	if _, err := browser.ResolveConfig(c.Browser); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, v := range c.Scenarios.Viewports {
		if _, err := browser.ParseViewport(v); err != nil {
			return fmt.Errorf("config: scenarios.viewports: %w", err)
		}
	}
	switch c.Supabase.Backend {
	case "", BackendREST, BackendPostgres:
	default:
		return fmt.Errorf("config: supabase.backend must be %q or %q, got %q", BackendREST, BackendPostgres, c.Supabase.Backend)
	}
	for name, id := range c.Identities {
		if id.Email == "" {
			return fmt.Errorf("config: identities.%s.email is required", name)
		}
		if strings.TrimSpace(id.Landing) == "" {
			return fmt.Errorf("config: identities.%s.landing is required", name)
		}
	}
	return nil
}

// Identity returns the named identity.
func (c *Config) Identity(name string) (Identity, error) {
	id, ok := c.Identities[name]
	if !ok {
		return Identity{}, fmt.Errorf("unknown identity %q (have: %s)", name, strings.Join(c.IdentityNames(), ", "))
	}
	if id.Label == "" {
		id.Label = strings.ToUpper(name[:1]) + name[1:]
	}
	return id, nil
}

// IdentityNames returns identity names sorted.
func (c *Config) IdentityNames() []string {
	names := make([]string, 0, len(c.Identities))
	for name := range c.Identities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PasswordKeys lists the credential names tried for an identity's password.
func (id Identity) PasswordKeys(name string) []string {
	keys := []string{}
	if id.PasswordKey != "" {
		keys = append(keys, id.PasswordKey)
	}
	return append(keys, "E2E_"+strings.ToUpper(name)+"_PASSWORD", "E2E_DEMO_PASSWORD")
}

// Viewports parses scenarios.viewports.
func (c *Config) Viewports() []browser.Viewport {
	out := make([]browser.Viewport, 0, len(c.Scenarios.Viewports))
	for _, v := range c.Scenarios.Viewports {
		if vp, err := browser.ParseViewport(v); err == nil {
			out = append(out, vp)
		}
	}
	return out
}

// Selector returns the configured override for key, or def.
func (c *Config) Selector(key, def string) string {
	if s, ok := c.Scenarios.Selectors[key]; ok && s != "" {
		return s
	}
	return def
}

// Backend returns the fixture backend, defaulting to REST.
func (c *Config) Backend() string {
	if c.Supabase.Backend == "" {
		return BackendREST
	}
	return c.Supabase.Backend
}

// parseBool parses a string as boolean with a default value.
// Accepts: "true", "1", "yes" as true; "false", "0", "no" as false.
func parseBool(s string, defaultVal bool) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}
