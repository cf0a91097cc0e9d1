package browser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the browser section of the agencycheck config.
type Config struct {
	// Driver is "playwright" (default) or "chromedp".
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`

	// Headless runs browsers without UI.
	Headless bool `json:"headless" yaml:"headless"`

	// NoSandbox disables Chrome sandbox (needed in some containers).
	NoSandbox bool `json:"noSandbox,omitempty" yaml:"no_sandbox,omitempty"`

	// ExecutablePath overrides the Chromium binary.
	ExecutablePath string `json:"executablePath,omitempty" yaml:"executable_path,omitempty"`

	// Install downloads Playwright browsers before launch.
	Install bool `json:"install,omitempty" yaml:"install,omitempty"`

	// SlowMo slows every Playwright operation, for watching a headed run.
	SlowMo time.Duration `json:"slowMo,omitempty" yaml:"slow_mo,omitempty"`

	ActionTimeout     time.Duration `json:"actionTimeout,omitempty" yaml:"action_timeout,omitempty"`
	NavigationTimeout time.Duration `json:"navigationTimeout,omitempty" yaml:"navigation_timeout,omitempty"`

	// Viewport is the default page size, "WIDTHxHEIGHT".
	Viewport string `json:"viewport,omitempty" yaml:"viewport,omitempty"`
}

// ResolvedConfig is Config with defaults applied and the viewport parsed.
type ResolvedConfig struct {
	Driver            string
	Headless          bool
	NoSandbox         bool
	ExecutablePath    string
	Install           bool
	SlowMo            time.Duration
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	Viewport          Viewport
}

// DefaultConfig returns the default browser configuration.
func DefaultConfig() Config {
	return Config{
		Driver:            DriverPlaywright,
		Headless:          true,
		ActionTimeout:     DefaultActionTimeout,
		NavigationTimeout: DefaultNavigationTimeout,
		Viewport:          Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}.String(),
	}
}

// ResolveConfig resolves a browser config with defaults applied.
func ResolveConfig(cfg Config) (*ResolvedConfig, error) {
	resolved := &ResolvedConfig{
		Driver:            strings.ToLower(strings.TrimSpace(cfg.Driver)),
		Headless:          cfg.Headless,
		NoSandbox:         cfg.NoSandbox,
		ExecutablePath:    cfg.ExecutablePath,
		Install:           cfg.Install,
		SlowMo:            cfg.SlowMo,
		ActionTimeout:     cfg.ActionTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		Viewport:          Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
	}

	switch resolved.Driver {
	case "":
		resolved.Driver = DriverPlaywright
	case DriverPlaywright, DriverChromedp:
	default:
		return nil, fmt.Errorf("unknown browser driver: %s (valid: %s, %s)", cfg.Driver, DriverPlaywright, DriverChromedp)
	}

	if resolved.ActionTimeout <= 0 {
		resolved.ActionTimeout = DefaultActionTimeout
	}
	if resolved.NavigationTimeout <= 0 {
		resolved.NavigationTimeout = DefaultNavigationTimeout
	}

	if cfg.Viewport != "" {
		vp, err := ParseViewport(cfg.Viewport)
		if err != nil {
			return nil, err
		}
		resolved.Viewport = vp
	}

	return resolved, nil
}

// Viewport is a page size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// IsZero reports whether no size was set.
func (v Viewport) IsZero() bool {
	return v.Width == 0 && v.Height == 0
}

// ParseViewport parses "375x667" (also accepts "375X667" and "375*667").
func ParseViewport(s string) (Viewport, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "xX*")
	if sep <= 0 || sep == len(s)-1 {
		return Viewport{}, fmt.Errorf("invalid viewport %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(s[:sep]))
	if err != nil {
		return Viewport{}, fmt.Errorf("invalid viewport width in %q: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(s[sep+1:]))
	if err != nil {
		return Viewport{}, fmt.Errorf("invalid viewport height in %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return Viewport{}, fmt.Errorf("invalid viewport %q: dimensions must be positive", s)
	}
	return Viewport{Width: w, Height: h}, nil
}
