// Package defaults holds the embedded base configuration and manages the
// data directory where the sample suite, run history and screenshots live.
//
// The data directory is AGENCYCHECK_DATA_DIR when set, otherwise
// "agencycheck" under the user config dir ("AgencyCheck" off Linux).
package defaults

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
)

//go:embed dotagencycheck/*
var embedded embed.FS

const (
	// ConfigFile is the base configuration. It is read from the binary
	// and never written to disk.
	ConfigFile = "config.yaml"

	// SuiteFile is the sample suite users copy and edit.
	SuiteFile = "suite.yaml"

	embedRoot = "dotagencycheck"
)

// samples are the embedded files init writes into the data directory.
var samples = []string{SuiteFile}

// Sample describes one sample file after Install.
type Sample struct {
	Path    string
	Written bool // false when an existing copy was kept
}

// BaseConfig returns the embedded base configuration.
func BaseConfig() ([]byte, error) {
	return embedded.ReadFile(path.Join(embedRoot, ConfigFile))
}

// DataDir resolves the data directory without creating it.
func DataDir() (string, error) {
	if dir := os.Getenv("AGENCYCHECK_DATA_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	name := "AgencyCheck"
	if runtime.GOOS == "linux" {
		name = "agencycheck"
	}
	return filepath.Join(base, name), nil
}

// EnsureDataDir creates the data directory and writes any missing samples.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if _, err := Install(dir, false); err != nil {
		return "", err
	}
	return dir, nil
}

// Install writes the samples into dir, creating it. Existing files are
// kept unless overwrite is set. Run history in dir is never touched.
func Install(dir string, overwrite bool) ([]Sample, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	out := make([]Sample, 0, len(samples))
	for _, name := range samples {
		dest := filepath.Join(dir, name)
		if !overwrite {
			_, err := os.Stat(dest)
			if err == nil {
				out = append(out, Sample{Path: dest})
				continue
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return out, err
			}
		}
		data, err := embedded.ReadFile(path.Join(embedRoot, name))
		if err != nil {
			return out, fmt.Errorf("failed to read embedded %s: %w", name, err)
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return out, fmt.Errorf("failed to write %s: %w", dest, err)
		}
		out = append(out, Sample{Path: dest, Written: true})
	}
	return out, nil
}

// ArtifactsDir returns <data_dir>/artifacts/<runID>, creating it.
func ArtifactsDir(runID string) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, "artifacts", runID)
	if err := os.MkdirAll(p, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	return p, nil
}
