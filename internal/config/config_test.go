package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	opts, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), opts)
}

func TestLoadOverlaysYAMLFile(t *testing.T) {
	dir := t.TempDir()
	content := "verify: false\nbatchName: card-27\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFilename), []byte(content), 0o644))

	opts, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, opts.Verify)
	assert.Equal(t, "card-27", opts.BatchName)
	assert.True(t, opts.DedupEnabled, "unset fields keep their default")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := "verify: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFilename), []byte(content), 0o644))

	t.Setenv("WNB_IMPORT_VERIFY", "true")

	opts, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, opts.Verify, "env var takes precedence over the config file")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFilename), []byte("verify: [this is not a bool"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
