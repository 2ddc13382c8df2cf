// Package playground is the coordination layer of gorupad.
//
// A Store holds the session state (editor source, terminal output, error
// text, layout and loading flags) and is changed only through Dispatch with
// typed actions. An App drives the async actions against a Store:
//
//	store := playground.NewStore()
//	app := playground.NewApp(store, loader, playground.WithLogger(logger))
//	app.Bootstrap(ctx, ref)
//	app.Submit(ctx, "print(1 + 1)")
//
// Views subscribe to the store and render snapshots. Errors from the
// runtime, installs and execution are written to State.Error and take
// priority over output when displayed.
package playground
