// Package hostfunc provides host functions for sandboxed interpreter code.
//
// Host functions are Go functions that sandboxed code reaches through the
// session protocol. Nothing is exposed unless it is registered:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("my_func", func(ctx context.Context, args map[string]any) (any, error) {
//	    return "result", nil
//	})
//
// # Package installation
//
// [NewPkgInstaller] lets code call install_pkg("name") to pull a pure-Python
// wheel into the session's packages directory. It is disabled unless
// [PkgConfig.Enabled] is set and can be restricted to an allowlist.
package hostfunc
