package playground

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

const installPrefix = "pip install "

// PackageSet records package names an install was attempted for. Names are
// never removed.
type PackageSet struct {
	mu    sync.Mutex
	names []string
}

func NewPackageSet() *PackageSet {
	return &PackageSet{}
}

// Add records name and reports whether it was new.
func (p *PackageSet) Add(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.names, name) {
		return false
	}
	p.names = append(p.names, name)
	return true
}

func (p *PackageSet) Contains(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(p.names, name)
}

// List returns the names in the order they were added.
func (p *PackageSet) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.names)
}

// ParseInstallDirective extracts the package name from terminal input such
// as "pip install requests". Only the first occurrence of the prefix is
// removed. Input without the prefix is treated as a bare name.
func ParseInstallDirective(directive string) string {
	return strings.TrimSpace(strings.Replace(directive, installPrefix, "", 1))
}

// IsInstallDirective reports whether terminal input should go to the
// installer instead of the interpreter.
func IsInstallDirective(line string) bool {
	return strings.Contains(line, "pip install")
}

// Install installs the package named by directive. It does nothing when
// the name is empty, was attempted before, or no runtime is loaded. A
// failed name stays recorded and is not retried.
func (a *App) Install(ctx context.Context, directive string) {
	name := ParseInstallDirective(directive)
	if name == "" {
		return
	}
	_, inst := a.handles()
	if inst == nil {
		return
	}
	if !a.packages.Add(name) {
		a.logger.Debug("package already requested", "package", name)
		return
	}

	a.store.setFlag(flagPackageLoading, true)
	defer a.store.setFlag(flagPackageLoading, false)

	a.logger.Info("installing package", "package", name)
	if err := inst.Install(ctx, name); err != nil {
		a.logger.Error("package install failed", "error", &PackageInstallError{Name: name, Err: err})
		a.store.SetError(fmt.Sprintf("Failed to install %s: %v", name, err))
		return
	}

	a.store.AppendOutput(installedLine(name))
	a.store.ClearError()
}

func installedLine(name string) string {
	return fmt.Sprintf("pip install %s successfully installed", name)
}

// specName strips version and extras from a requirement such as
// "requests[socks]==2.31.0".
func specName(spec string) string {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexAny(spec, "=<>!~[;"); i >= 0 {
		spec = spec[:i]
	}
	return strings.TrimSpace(spec)
}

// GuestInstaller serves installs requested by running code. It shares a
// PackageSet with the App, so a name is fetched at most once whether it
// came from the terminal, a snippet or install_pkg(). Failures are
// returned to the caller instead of being written to the store.
type GuestInstaller struct {
	store    *Store
	packages *PackageSet
	inner    PackageInstaller
	logger   *slog.Logger
}

func NewGuestInstaller(store *Store, packages *PackageSet, inner PackageInstaller, logger *slog.Logger) *GuestInstaller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GuestInstaller{store: store, packages: packages, inner: inner, logger: logger}
}

// Install installs spec unless its name was already attempted.
func (g *GuestInstaller) Install(ctx context.Context, spec string) error {
	name := specName(spec)
	if name == "" {
		return fmt.Errorf("%w: empty package name", ErrPackageInstall)
	}
	if !g.packages.Add(name) {
		g.logger.Debug("package already requested", "package", name, "source", "guest")
		return nil
	}

	g.store.setFlag(flagPackageLoading, true)
	defer g.store.setFlag(flagPackageLoading, false)

	g.logger.Info("installing package", "package", spec, "source", "guest")
	if err := g.inner.Install(ctx, spec); err != nil {
		return &PackageInstallError{Name: name, Err: err}
	}
	g.store.AppendOutput(installedLine(name))
	return nil
}
