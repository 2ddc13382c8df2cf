package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvGitHubToken, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	t.Setenv(EnvGitHubToken, "")
	path := writeConfig(t, `
python:
  wasm: /opt/python.wasm
  memory_limit: 256mb
  run_timeout: 5s
packages:
  guest_install: true
  allowed: [requests, attrs]
gist:
  token: from-file
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/python.wasm", cfg.Python.Wasm)
	assert.Equal(t, 5*time.Second, cfg.Python.RunTimeout)
	assert.Equal(t, 30*time.Second, cfg.Python.StartTimeout)
	assert.EqualValues(t, 4096, cfg.MemoryLimitPages())
	assert.True(t, cfg.Packages.GuestInstall)
	assert.Equal(t, []string{"requests", "attrs"}, cfg.Packages.Allowed)
	assert.Equal(t, Default().Packages.IndexURL, cfg.Packages.IndexURL)
	assert.Equal(t, "from-file", cfg.Gist.Token)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv(EnvGitHubToken, "from-env")

	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Gist.Token)

	cfg, err = Load(writeConfig(t, "gist:\n  token: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Gist.Token)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":       "python: [",
		"log level":    "log:\n  level: loud\n",
		"memory limit": "python:\n  memory_limit: 3mb\n",
		"empty dir":    "packages:\n  dir: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load(writeConfig(t, "packages:\n  dir: ~/pkgs\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "pkgs"), cfg.Packages.Dir)
}

func TestPath(t *testing.T) {
	t.Setenv(EnvPath, "/etc/gorupad.yaml")
	assert.Equal(t, "/etc/gorupad.yaml", Path())

	t.Setenv(EnvPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	assert.Equal(t, filepath.Join("/cfg", "gorupad", "config.yaml"), Path())
}
