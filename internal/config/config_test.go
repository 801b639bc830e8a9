package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithEmptyPathReturnsZeroValue(t *testing.T) {
	d, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults{}, d)
}

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults{}, d)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	contents := `
org_name: octo-org
base_url: https://github.example.com/api/v3
extra_page_size: 75
retry_max_attempts: 5
retry_backoff_factor: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "octo-org", d.OrgName)
	assert.Equal(t, "https://github.example.com/api/v3", d.BaseURL)
	assert.Equal(t, 75, d.ExtraPageSize)
	assert.Equal(t, 5, d.RetryMaxAttempts)
	assert.InDelta(t, 1.5, d.RetryBackoffFactor, 0.0001)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("org_name: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
