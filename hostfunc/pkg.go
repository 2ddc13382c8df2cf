package hostfunc

import (
	"context"
	"fmt"
	"strings"
)

// PackageInstaller installs a package spec ("name" or "name==version")
// into the directory the sandbox imports from.
type PackageInstaller interface {
	Install(ctx context.Context, spec string) error
}

// PkgConfig configures the package installer host function.
type PkgConfig struct {
	AllowedPackages []string // If set, only these packages can be installed
	Enabled         bool     // Whether package installation is enabled
}

// DefaultPkgConfig returns the default package installer configuration.
func DefaultPkgConfig() PkgConfig {
	return PkgConfig{
		Enabled: false,
	}
}

// NewPkgInstaller returns a host function that installs Python packages
// through installer. Args: name (required), version (optional).
func NewPkgInstaller(installer PackageInstaller, cfg PkgConfig) Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		if !cfg.Enabled || installer == nil {
			return nil, fmt.Errorf("package installation disabled")
		}

		name, _ := args["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("package name required")
		}

		if strings.ContainsAny(name, ";|&$`/\\ ") {
			return nil, fmt.Errorf("invalid package name")
		}

		if len(cfg.AllowedPackages) > 0 {
			allowed := false
			for _, pkg := range cfg.AllowedPackages {
				if strings.EqualFold(pkg, name) || strings.HasPrefix(name, pkg+"[") {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, fmt.Errorf("package %q not allowed", name)
			}
		}

		spec := name
		if version, ok := args["version"].(string); ok && version != "" {
			if strings.ContainsAny(version, ";|&$`/\\ ") {
				return nil, fmt.Errorf("invalid version specifier")
			}
			if !strings.ContainsAny(version[:1], "=<>!~") {
				version = "==" + version
			}
			spec = name + version
		}

		if err := installer.Install(ctx, spec); err != nil {
			return map[string]any{
				"success": false,
				"error":   err.Error(),
			}, nil
		}

		return map[string]any{
			"success": true,
			"package": spec,
		}, nil
	}
}
