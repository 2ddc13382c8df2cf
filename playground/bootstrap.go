package playground

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Phase is the bootstrap progress of an App.
type Phase string

const (
	PhaseBooting           Phase = "booting"
	PhaseRuntimeReady      Phase = "runtime-ready"
	PhaseSnippetFetching   Phase = "snippet-fetching"
	PhaseSnippetInstalling Phase = "snippet-installing"
	PhaseReady             Phase = "ready"
)

// SnippetRef names a file inside a remote document.
type SnippetRef struct {
	DocumentID string
	File       string
}

// ParseSnippetRef reads the gist and file parameters from a playground URL
// ("https://host/?gist=abc123&file=main.py") or a bare query string
// ("gist=abc123&file=main.py"). Missing parameters yield empty fields.
func ParseSnippetRef(s string) (SnippetRef, error) {
	s = strings.TrimSpace(s)
	var query url.Values
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return SnippetRef{}, fmt.Errorf("parse playground url: %w", err)
		}
		query = u.Query()
	} else {
		var err error
		query, err = url.ParseQuery(strings.TrimPrefix(s, "?"))
		if err != nil {
			return SnippetRef{}, fmt.Errorf("parse playground query: %w", err)
		}
	}
	return SnippetRef{DocumentID: query.Get("gist"), File: query.Get("file")}, nil
}

// Valid reports whether both the document and the file are named. A
// partial reference disables hydration.
func (r SnippetRef) Valid() bool {
	return r.DocumentID != "" && r.File != ""
}

// CacheKey is the snippet cache key: document id followed by file name.
func (r SnippetRef) CacheKey() string {
	return r.DocumentID + r.File
}

func (r SnippetRef) String() string {
	return r.DocumentID + "/" + r.File
}

var pipDirective = regexp.MustCompile(`(?m)^#\s*@pip\s+([\w\-]+)`)

// ExtractPackages returns the names declared with "# @pip <name>" lines,
// in file order.
func ExtractPackages(source string) []string {
	var names []string
	for _, m := range pipDirective.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	return names
}

// HydrationResult is the outcome of loading a remote snippet. Err is set
// on failure and is never fatal to bootstrap.
type HydrationResult struct {
	Source    string
	Packages  []string
	FromCache bool
	Found     bool
	Err       error
}

// Phase returns the current bootstrap phase.
func (a *App) Phase() Phase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.phase
}

func (a *App) setPhase(p Phase) {
	a.mu.Lock()
	prev := a.phase
	a.phase = p
	a.mu.Unlock()
	a.logger.Debug("bootstrap phase", "from", prev, "to", p)
}

// Hydrate loads the snippet named by ref, from the cache when present and
// otherwise from the snippet source, writing the cache on a successful
// fetch. It does not touch the store.
func (a *App) Hydrate(ctx context.Context, ref SnippetRef) HydrationResult {
	if !ref.Valid() {
		return HydrationResult{}
	}

	key := ref.CacheKey()
	if a.cache != nil {
		content, ok, err := a.cache.Get(ctx, key)
		switch {
		case err != nil:
			a.logger.Warn("snippet cache read failed", "key", key, "error", err)
		case ok:
			return HydrationResult{
				Source:    content,
				Packages:  ExtractPackages(content),
				FromCache: true,
				Found:     true,
			}
		}
	}

	if a.snippet == nil {
		return HydrationResult{Err: fmt.Errorf("%w: no snippet source configured", ErrSnippetFetch)}
	}

	content, err := a.snippet.FetchFile(ctx, ref.DocumentID, ref.File)
	if err != nil {
		if !errors.Is(err, ErrSnippetFetch) {
			err = fmt.Errorf("%w: %s: %w", ErrSnippetFetch, ref, err)
		}
		return HydrationResult{Err: err}
	}

	if a.cache != nil {
		if err := a.cache.Put(ctx, key, content); err != nil {
			a.logger.Warn("snippet cache write failed", "key", key, "error", err)
		}
	}

	return HydrationResult{
		Source:   content,
		Packages: ExtractPackages(content),
		Found:    true,
	}
}

// Bootstrap loads the runtime, then hydrates from ref and installs the
// snippet's declared packages one after another. AppLoading is false when
// it returns, whatever happened along the way.
func (a *App) Bootstrap(ctx context.Context, ref SnippetRef) HydrationResult {
	defer a.FinishAppLoad()
	defer a.setPhase(PhaseReady)

	a.setPhase(PhaseBooting)
	if err := a.InitializeRuntime(ctx); err != nil {
		a.logger.Warn("continuing without runtime", "error", err)
	}
	a.setPhase(PhaseRuntimeReady)

	if !ref.Valid() {
		return HydrationResult{}
	}

	a.setPhase(PhaseSnippetFetching)
	res := a.Hydrate(ctx, ref)
	if res.Err != nil {
		a.logger.Warn("snippet hydration failed", "snippet", ref.String(), "error", res.Err)
		return res
	}
	if !res.Found {
		return res
	}
	a.logger.Info("snippet loaded", "snippet", ref.String(), "cached", res.FromCache, "packages", len(res.Packages))
	a.store.SetSource(res.Source)

	a.setPhase(PhaseSnippetInstalling)
	for _, name := range res.Packages {
		a.Install(ctx, name)
	}
	return res
}
