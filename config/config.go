// Package config loads gorupad settings from a YAML file. Command-line flags
// are applied on top by the CLI, so the order of precedence is
// flag > file > default. $GITHUB_TOKEN only fills in a gist token the file
// leaves empty.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caffeineduck/gorupad/executor"
	"github.com/caffeineduck/gorupad/gist"
	"github.com/caffeineduck/gorupad/language/python"
	"github.com/caffeineduck/gorupad/pypi"
	"github.com/caffeineduck/gorupad/snippetcache"
)

// EnvPath overrides the config file location.
const EnvPath = "GORUPAD_CONFIG"

// EnvGitHubToken is read when no gist token is configured.
const EnvGitHubToken = "GITHUB_TOKEN"

type Config struct {
	Python   Python   `yaml:"python"`
	Packages Packages `yaml:"packages"`
	Gist     Gist     `yaml:"gist"`
	Cache    Cache    `yaml:"cache"`
	Log      Log      `yaml:"log"`
	Serve    Serve    `yaml:"serve"`
}

type Python struct {
	Wasm         string        `yaml:"wasm"`
	CompileCache string        `yaml:"compile_cache"`
	MemoryLimit  string        `yaml:"memory_limit"`
	StartTimeout time.Duration `yaml:"start_timeout"`
	// RunTimeout bounds each execution. Zero means none.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

type Packages struct {
	Dir      string `yaml:"dir"`
	IndexURL string `yaml:"index_url"`
	// GuestInstall exposes install_pkg() to sandboxed code.
	GuestInstall bool     `yaml:"guest_install"`
	Allowed      []string `yaml:"allowed"`
}

type Gist struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type Cache struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type Log struct {
	Level string `yaml:"level"`
	// File receives logs. Empty means stderr, except in the TUI where
	// logging is off unless a file is set.
	File string `yaml:"file"`
}

type Serve struct {
	Addr string `yaml:"addr"`
}

// DefaultPackagesDir is where wheels are extracted by default.
func DefaultPackagesDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gorupad", "packages")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "gorupad", "packages")
	}
	return "packages"
}

func Default() Config {
	return Config{
		Python: Python{
			Wasm:         python.DefaultWasmPath(),
			CompileCache: executor.DefaultCacheDir(),
			StartTimeout: 30 * time.Second,
		},
		Packages: Packages{
			Dir:      DefaultPackagesDir(),
			IndexURL: pypi.DefaultIndexURL,
		},
		Gist: Gist{
			BaseURL: gist.DefaultBaseURL,
		},
		Cache: Cache{
			Path: snippetcache.DefaultPath(),
		},
		Log: Log{
			Level: "info",
		},
		Serve: Serve{
			Addr: "127.0.0.1:8080",
		},
	}
}

// Path returns the config file location: $GORUPAD_CONFIG, or
// config.yaml under the user config directory.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "gorupad", "config.yaml")
}

// Load reads the file at path over the defaults. A missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.Gist.Token == "" {
		cfg.Gist.Token = os.Getenv(EnvGitHubToken)
	}

	cfg.Python.Wasm = expandHome(cfg.Python.Wasm)
	cfg.Python.CompileCache = expandHome(cfg.Python.CompileCache)
	cfg.Packages.Dir = expandHome(cfg.Packages.Dir)
	cfg.Cache.Path = expandHome(cfg.Cache.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	return cfg, cfg.Validate()
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Python.MemoryLimit != "" && executor.ParseMemoryLimit(c.Python.MemoryLimit) == 0 {
		return fmt.Errorf("invalid memory_limit %q (use 1mb, 16mb, 64mb, 256mb or 1gb)", c.Python.MemoryLimit)
	}
	if c.Python.RunTimeout < 0 {
		return fmt.Errorf("invalid run_timeout %v", c.Python.RunTimeout)
	}
	if c.Packages.Dir == "" {
		return errors.New("packages.dir must not be empty")
	}
	return nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// MemoryLimitPages converts Python.MemoryLimit to wasm pages. Zero means
// no limit.
func (c Config) MemoryLimitPages() uint32 {
	return executor.ParseMemoryLimit(c.Python.MemoryLimit)
}
