// Package executor runs interpreter WASM modules under wazero and keeps them
// alive as sessions that accept code one snippet at a time.
//
// # Sessions
//
// A Session starts the interpreter once and feeds it exec commands over
// stdin. State persists between runs:
//
//	exec, err := executor.New(hostfunc.NewRegistry(), executor.WithDiskCache())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	session, err := exec.NewSession(lang, executor.WithPackages("./packages"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	session.Run(ctx, `x = 42`)
//	session.Run(ctx, `print(x)`, executor.WithOutput(func(line string) {
//	    fmt.Println(line) // 42
//	}))
//
// # Output
//
// A Run returns its stdout and stray stderr text in Result.Output.
// [WithOutput] instead streams stdout line by line while the code runs;
// the sink is attached for that call only.
//
// # Host functions
//
// The interpreter prelude reaches Go through host calls framed on stderr and
// answered on stdin. Register them on the [hostfunc.Registry] passed to
// [New] or per session with [WithHostFunc].
package executor
