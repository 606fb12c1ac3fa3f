package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8765, cfg.Gateway.Port)
	assert.Equal(t, 10000, cfg.Defaults.InitTimeoutMS)
	assert.Equal(t, "@every 1m", cfg.Reaper.Schedule)
	assert.True(t, cfg.Browser.Headless)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.CatalogPath)
	assert.NotEmpty(t, cfg.StorePath)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolmux.json")
	body := `{
		"data_dir": "/tmp/toolmux-test",
		"logging": {"level": "debug", "pretty": true},
		"gateway": {"enabled": true, "port": 9100, "shared_secret": "0123456789abcdef"},
		"defaults": {"init_timeout_ms": 5000, "command_timeout_ms": 60000},
		"reaper": {"schedule": "@every 5m", "max_idle_minutes": 10}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, 9100, cfg.Gateway.Port)
	assert.Equal(t, "0123456789abcdef", cfg.Gateway.SharedSecret)
	assert.Equal(t, 5000, cfg.Defaults.InitTimeoutMS)
	assert.Equal(t, 60000, cfg.Defaults.CommandTimeoutMS)
	assert.Equal(t, "@every 5m", cfg.Reaper.Schedule)
	assert.Equal(t, 10, cfg.Reaper.MaxIdleMinutes)

	// Derived paths follow the configured data dir
	assert.Equal(t, filepath.Join("/tmp/toolmux-test", "tools.toml"), cfg.CatalogPath)
	assert.Equal(t, filepath.Join("/tmp/toolmux-test", "toolmux.db"), cfg.StorePath)
	assert.Equal(t, filepath.Join("/tmp/toolmux-test", "toolmux.log"), cfg.Logging.File)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolmux.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolmux.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/toolmux-save"
	cfg.Gateway.Port = 9200
	cfg.Gateway.SharedSecret = "a-long-enough-secret"
	cfg.Browser.AllowedDomains = []string{"example.com"}
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 9200, loaded.Gateway.Port)
	assert.Equal(t, "a-long-enough-secret", loaded.Gateway.SharedSecret)
	assert.Equal(t, []string{"example.com"}, loaded.Browser.AllowedDomains)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/toolmux.json", NewLoader("/etc/toolmux.json").GetConfigPath())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".toolmux", "toolmux.json"), NewLoader("").GetConfigPath())
}
