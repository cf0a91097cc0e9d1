package browser

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Kind identifies a Chromium-based browser.
type Kind string

const (
	KindChrome   Kind = "chrome"
	KindBrave    Kind = "brave"
	KindEdge     Kind = "edge"
	KindChromium Kind = "chromium"
	KindCustom   Kind = "custom"
)

// ErrNoChrome is returned when no Chromium-based browser is installed.
var ErrNoChrome = errors.New("no Chrome/Chromium executable found")

// Executable is a browser binary found on this machine.
type Executable struct {
	Kind Kind
	Path string
}

type candidate struct {
	kind Kind
	path string
}

// FindChrome locates a Chromium-based browser for the chromedp driver.
// customPath, when set, must exist.
func FindChrome(customPath string) (*Executable, error) {
	if customPath != "" {
		if !fileExists(customPath) {
			return nil, fmt.Errorf("browser executable not found: %s", customPath)
		}
		return &Executable{Kind: KindCustom, Path: customPath}, nil
	}

	for _, c := range candidates(runtime.GOOS) {
		if fileExists(c.path) {
			return &Executable{Kind: c.kind, Path: c.path}, nil
		}
	}

	// Anything else on PATH
	for _, c := range []candidate{
		{KindChrome, "google-chrome"},
		{KindChromium, "chromium"},
		{KindChromium, "chromium-browser"},
	} {
		if p, err := exec.LookPath(c.path); err == nil {
			return &Executable{Kind: c.kind, Path: p}, nil
		}
	}
	return nil, ErrNoChrome
}

func candidates(goos string) []candidate {
	home := os.Getenv("HOME")
	switch goos {
	case "darwin":
		return []candidate{
			{KindChrome, "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"},
			{KindChrome, filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome")},
			{KindChromium, "/Applications/Chromium.app/Contents/MacOS/Chromium"},
			{KindBrave, "/Applications/Brave Browser.app/Contents/MacOS/Brave Browser"},
			{KindEdge, "/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"},
		}
	case "linux":
		return []candidate{
			{KindChrome, "/usr/bin/google-chrome"},
			{KindChrome, "/usr/bin/google-chrome-stable"},
			{KindChromium, "/usr/bin/chromium"},
			{KindChromium, "/usr/bin/chromium-browser"},
			{KindChromium, "/snap/bin/chromium"},
			{KindBrave, "/usr/bin/brave-browser"},
			{KindEdge, "/usr/bin/microsoft-edge"},
		}
	case "windows":
		programFiles := os.Getenv("ProgramFiles")
		if programFiles == "" {
			programFiles = `C:\Program Files`
		}
		programFilesX86 := os.Getenv("ProgramFiles(x86)")
		if programFilesX86 == "" {
			programFilesX86 = `C:\Program Files (x86)`
		}
		var out []candidate
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			out = append(out, candidate{KindChrome, filepath.Join(local, "Google", "Chrome", "Application", "chrome.exe")})
		}
		return append(out,
			candidate{KindChrome, filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe")},
			candidate{KindChrome, filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe")},
			candidate{KindEdge, filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe")},
		)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
