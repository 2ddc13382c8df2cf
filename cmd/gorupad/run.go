package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/gorupad/playground"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run Python code without the playground UI",
	Long: `Run Python code from a file, inline string, stdin or a gist.

Packages named with "# @pip <name>" lines are installed before the code
runs, the same way the playground does for shared snippets.

Examples:
  gorupad run script.py
  gorupad run -c 'print(1 + 1)'
  echo 'print("hi")' | gorupad run
  gorupad run --gist abc123 --file main.py`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	runCmd.Flags().StringP("code", "c", "", "Code to execute")
	addSnippetFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ref, err := snippetRef(cmd, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	code, _ := cmd.Flags().GetString("code")
	var source string
	switch {
	case code != "":
		source = code
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
	case ref.Valid():
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
	}

	if source == "" && !ref.Valid() {
		fmt.Fprintln(os.Stderr, "usage: gorupad run -c 'code' | gorupad run file.py | echo 'code' | gorupad run")
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	app, cleanup := newApp(cfg, logger)
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	if err := execute(ctx, app, ref, source, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cleanup()
		os.Exit(1)
	}
}

// execute boots app, installs the packages the code asks for and runs it
// once, streaming output lines to w. An empty source runs the snippet named
// by ref.
func execute(ctx context.Context, app *playground.App, ref playground.SnippetRef, source string, w io.Writer) error {
	store := app.Store()

	hydrated := app.Bootstrap(ctx, ref)
	if state := store.Snapshot(); state.Error != "" {
		return errors.New(state.Error)
	}

	if source == "" {
		if !hydrated.Found {
			if hydrated.Err != nil {
				return hydrated.Err
			}
			return fmt.Errorf("snippet %s not found", ref)
		}
		source = hydrated.Source
	} else {
		for _, name := range playground.ExtractPackages(source) {
			app.Install(ctx, name)
		}
		if state := store.Snapshot(); state.Error != "" {
			return errors.New(state.Error)
		}
	}

	store.ClearOutput("")
	updates, stop := store.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		streamOutput(w, updates)
	}()

	app.Run(ctx, source)
	stop()
	<-done

	if state := store.Snapshot(); state.Error != "" {
		return errors.New(state.Error)
	}
	return nil
}

// streamOutput writes each line appended to the output buffer as snapshots
// arrive, until updates is closed.
func streamOutput(w io.Writer, updates <-chan playground.State) {
	printed := ""
	for state := range updates {
		if state.Output == printed {
			continue
		}
		if !strings.HasPrefix(state.Output, printed) {
			printed = ""
		}
		fmt.Fprint(w, outputSince(printed, state.Output))
		printed = state.Output
	}
}
