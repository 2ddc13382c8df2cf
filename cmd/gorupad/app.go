package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caffeineduck/gorupad/config"
	"github.com/caffeineduck/gorupad/gist"
	"github.com/caffeineduck/gorupad/interp"
	"github.com/caffeineduck/gorupad/playground"
	"github.com/caffeineduck/gorupad/snippetcache"
)

// newLogger builds the process logger. Logs go to cfg.Log.File when set,
// otherwise to w. A nil w with no file discards everything. The returned
// func closes the log file.
func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, func() error, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return slog.New(slog.NewTextHandler(f, opts)), f.Close, nil
	}

	if w == nil {
		return slog.New(slog.DiscardHandler), noClose, nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), noClose, nil
}

func noClose() error { return nil }

func loaderOptions(cfg config.Config, logger *slog.Logger) interp.Options {
	return interp.Options{
		WasmPath:        cfg.Python.Wasm,
		PackagesDir:     cfg.Packages.Dir,
		CompileCacheDir: cfg.Python.CompileCache,
		MemoryLimit:     cfg.MemoryLimitPages(),
		StartTimeout:    cfg.Python.StartTimeout,
		IndexURL:        cfg.Packages.IndexURL,
		GuestInstall:    cfg.Packages.GuestInstall,
		AllowedPackages: cfg.Packages.Allowed,
		Logger:          logger,
	}
}

// newApp wires the interpreter, the gist client and the snippet cache into a
// playground. The returned func releases all of them.
func newApp(cfg config.Config, logger *slog.Logger) (*playground.App, func()) {
	store := playground.NewStore()
	packages := playground.NewPackageSet()

	loaderOpts := loaderOptions(cfg, logger)
	loaderOpts.Store = store
	loaderOpts.Packages = packages
	loader := interp.NewLoader(loaderOpts)

	source := gist.New(
		gist.WithBaseURL(cfg.Gist.BaseURL),
		gist.WithToken(cfg.Gist.Token),
		gist.WithLogger(logger),
	)

	opts := []playground.Option{
		playground.WithLogger(logger),
		playground.WithSnippetSource(source),
		playground.WithRunTimeout(cfg.Python.RunTimeout),
		playground.WithPackageSet(packages),
	}

	var cache *snippetcache.Cache
	if !cfg.Cache.Disabled {
		c, err := snippetcache.Open(cfg.Cache.Path)
		if err != nil {
			// Snippets still load, they are just fetched every time.
			logger.Warn("snippet cache unavailable", "path", cfg.Cache.Path, "error", err)
		} else {
			cache = c
			opts = append(opts, playground.WithSnippetCache(cache))
		}
	}

	app := playground.NewApp(store, loader, opts...)

	return app, func() {
		if err := app.Close(); err != nil {
			logger.Warn("close runtime", "error", err)
		}
		if cache != nil {
			cache.Close()
		}
	}
}
