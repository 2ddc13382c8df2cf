// Package gorupad is a Python playground that runs code in a WebAssembly
// interpreter.
//
// # Overview
//
// A playground session holds editor source, an output buffer, an error
// message and a few loading flags. The terminal UI, the REPL and the HTTP
// server are views over the same session state and drive it through one
// set of actions: run the editor, submit a terminal line, install a
// package, clear the output and switch layout.
//
// Code runs in a RustPython WASI module hosted by wazero. The interpreter
// process persists between runs, so definitions made in one run are
// visible in the next. Packages are pure-Python wheels fetched from PyPI
// and mounted read-only into the sandbox.
//
// # Basic Usage
//
//	loader := interp.NewLoader(interp.Options{PackagesDir: dir})
//	app := playground.NewApp(playground.NewStore(), loader)
//	defer app.Close()
//
//	app.Bootstrap(ctx, playground.SnippetRef{})
//	app.Submit(ctx, "pip install six")
//	app.Run(ctx, `print("hello")`)
//	fmt.Println(app.Store().Snapshot().Output)
//
// # Shared Snippets
//
// A snippet is a file in a GitHub gist. Lines of the form "# @pip name"
// declare packages that are installed before the playground is ready.
//
//	client := gist.New(gist.WithToken(token))
//	app := playground.NewApp(store, loader,
//	    playground.WithSnippetSource(client),
//	    playground.WithSnippetCache(cache))
//	app.Bootstrap(ctx, playground.SnippetRef{DocumentID: "abc123", File: "main.py"})
//
// See the [playground], [interp], [executor] and [pypi] packages for
// detailed API documentation.
package gorupad
