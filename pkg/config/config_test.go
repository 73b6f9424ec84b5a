package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taigo", configFile)

	cfg := Default()
	cfg.BaseURL = "https://taiga.example.com/api/v1"
	cfg.CacheDir = "/tmp/taigo-cache"
	cfg.RequestTimeout = 5 * time.Second
	require.NoError(t, SaveFile(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFile)
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nrequest_timeout: 2m\n"), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
}

func TestEnvOverridesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvPath, path)

	got, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg := Default()
	cfg.BaseURL = "http://localhost:9000/api/v1"
	require.NoError(t, Save(cfg))
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseURL, loaded.BaseURL)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFile)
	require.NoError(t, os.WriteFile(path, []byte("base_url: [unclosed"), 0600))
	_, err := LoadFile(path)
	assert.Error(t, err)
}
