package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.IgnoredFolders)
	assert.NotEmpty(t, cfg.Regions)
}

func TestLoadWritesDefaultsOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoard.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.PlatformAliases)

	_, err = os.Stat(path)
	require.NoError(t, err, "defaults must be written out so the user can edit them")

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadMergesPartialFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ignored_folders:\n  - scans\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"scans"}, cfg.IgnoredFolders)
	assert.NotEmpty(t, cfg.Languages, "keys absent from the file keep their defaults")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ignored_folders: {not: [a, list"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
