package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	d := DefaultAppConfig()
	assert.Equal(t, d.HTTP.Addr, cfg.HTTP.Addr)
	assert.Equal(t, d.Auth.TokenKey, cfg.Auth.TokenKey)
	assert.True(t, cfg.Features.IssueLinking)
	assert.True(t, cfg.Features.Subtasks)
	assert.Equal(t, "commercial", cfg.License.Type)
	assert.Equal(t, "admin", cfg.DevLinks.User)
	assert.False(t, cfg.DevLinks.Enabled())
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.Database.Path = "/tmp/tracker-test.db"
	cfg.HTTP.Addr = ":9999"
	cfg.Features.RemoteLinks = false
	cfg.License = LicenseConfig{Type: "evaluation", Evaluation: true}
	cfg.Import.Remote.BaseURL = "https://jira.example.com"
	cfg.DevLinks.Bitbucket.BaseURL = "https://bitbucket.example.com"
	cfg.DevLinks.Bitbucket.Repos = []string{"HSP/app", "HSP/web"}

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Database.Path, got.Database.Path)
	assert.Equal(t, ":9999", got.HTTP.Addr)
	assert.False(t, got.Features.RemoteLinks)
	assert.True(t, got.Features.IssueLinking)
	assert.Equal(t, cfg.License, got.License)
	assert.Equal(t, "https://jira.example.com", got.Import.Remote.BaseURL)
	assert.Equal(t, []string{"HSP/app", "HSP/web"}, got.DevLinks.Bitbucket.Repos)
	assert.Equal(t, 300, got.DevLinks.IntervalSec)
	assert.True(t, got.DevLinks.Enabled())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TRACKER_HTTP_ADDR", ":7070")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
