package browser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseViewport(t *testing.T) {
	tests := []struct {
		in      string
		want    Viewport
		wantErr bool
	}{
		{in: "375x667", want: Viewport{375, 667}},
		{in: " 1920X1080 ", want: Viewport{1920, 1080}},
		{in: "768*1024", want: Viewport{768, 1024}},
		{in: "375", wantErr: true},
		{in: "x667", wantErr: true},
		{in: "375x", wantErr: true},
		{in: "0x667", wantErr: true},
		{in: "abcxdef", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseViewport(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Viewport {
	t.Helper()
	vp, err := ParseViewport(s)
	require.NoError(t, err)
	return vp
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := ResolveConfig(Config{})
	require.NoError(t, err)

	assert.Equal(t, DriverPlaywright, cfg.Driver)
	assert.Equal(t, DefaultActionTimeout, cfg.ActionTimeout)
	assert.Equal(t, DefaultNavigationTimeout, cfg.NavigationTimeout)
	assert.Equal(t, Viewport{DefaultViewportWidth, DefaultViewportHeight}, cfg.Viewport)
}

func TestResolveConfigOverrides(t *testing.T) {
	cfg, err := ResolveConfig(Config{
		Driver:        "ChromeDP",
		ActionTimeout: 3 * time.Second,
		Viewport:      "375x667",
	})
	require.NoError(t, err)

	assert.Equal(t, DriverChromedp, cfg.Driver)
	assert.Equal(t, 3*time.Second, cfg.ActionTimeout)
	assert.Equal(t, Viewport{375, 667}, cfg.Viewport)
}

func TestResolveConfigRejectsUnknownDriver(t *testing.T) {
	_, err := ResolveConfig(Config{Driver: "puppeteer"})
	assert.ErrorContains(t, err, "unknown browser driver")
}

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL("http://localhost:3000", "/login")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/login", got)

	got, err = ResolveURL("http://localhost:3000/app/", "/admin/tasks?view=board")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/admin/tasks?view=board", got)

	got, err = ResolveURL("", "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x", got)

	_, err = ResolveURL("", "/login")
	assert.Error(t, err)
	_, err = ResolveURL("http://localhost:3000", "")
	assert.Error(t, err)
}

func TestWrapBrowserErrorAddsHint(t *testing.T) {
	err := wrapBrowserError(errors.New("net::ERR_CONNECTION_REFUSED at http://localhost:3000/login"), "navigate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigate failed")
	assert.Contains(t, err.Error(), "app.base_url")

	assert.NoError(t, wrapBrowserError(nil, "click"))
}

func TestFindChromeCustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))

	exe, err := FindChrome(path)
	require.NoError(t, err)
	assert.Equal(t, KindCustom, exe.Kind)
	assert.Equal(t, path, exe.Path)

	_, err = FindChrome(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "browser executable not found")
}

func TestChromeCandidatesPerPlatform(t *testing.T) {
	t.Setenv("HOME", "/home/qa")
	assert.Contains(t, candidates("linux"), candidate{KindChromium, "/usr/bin/chromium"})
	assert.Contains(t, candidates("darwin"), candidate{KindChrome, "/home/qa/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"})
	assert.NotEmpty(t, candidates("windows"))
	assert.Empty(t, candidates("plan9"))
}
