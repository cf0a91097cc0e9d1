package defaults

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBaseConfigParses(t *testing.T) {
	content, err := BaseConfig()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(content, &doc))
	assert.Contains(t, doc, "identities")
}

func TestEmbeddedSamplesExist(t *testing.T) {
	for _, name := range samples {
		_, err := embedded.ReadFile(filepath.ToSlash(filepath.Join(embedRoot, name)))
		assert.NoError(t, err, name)
	}
}

func TestDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENCYCHECK_DATA_DIR", dir)

	got, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestEnsureDataDirWritesSuiteOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("AGENCYCHECK_DATA_DIR", dir)

	got, err := EnsureDataDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	assert.FileExists(t, filepath.Join(dir, SuiteFile))
	assert.NoFileExists(t, filepath.Join(dir, ConfigFile))
}

func TestInstallKeepsEditsUnlessOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, SuiteFile)
	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0644))

	got, err := Install(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []Sample{{Path: path}}, got)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "# mine\n", string(data))

	got, err = Install(dir, true)
	require.NoError(t, err)
	assert.Equal(t, []Sample{{Path: path, Written: true}}, got)
	data, _ = os.ReadFile(path)
	assert.NotEqual(t, "# mine\n", string(data))
}

func TestArtifactsDirCreatesRunFolder(t *testing.T) {
	t.Setenv("AGENCYCHECK_DATA_DIR", t.TempDir())

	dir, err := ArtifactsDir("run-1")
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, "run-1", filepath.Base(dir))
}
