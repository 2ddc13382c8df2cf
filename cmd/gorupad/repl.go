package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/gorupad/playground"
)

var replCmd = &cobra.Command{
	Use:   "repl [playground-url]",
	Short: "Interactive REPL with persistent state",
	Long: `Start a line-oriented playground session.

Every line runs in the same interpreter, so variables and imports persist.
"pip install <name>" installs a package instead of running code.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Commands:
  :run       Run the loaded snippet
  :source    Show the loaded snippet
  :clear     Reset the output buffer
  :packages  List packages installed this session

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.gorupad_history)")
	addSnippetFlags(replCmd)
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ref, err := snippetRef(cmd, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".gorupad_history")
	}

	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	app, cleanup := newApp(cfg, logger)
	defer cleanup()
	store := app.Store()

	fmt.Fprintln(os.Stderr, "Loading Python...")
	result := app.Bootstrap(context.Background(), ref)
	if state := store.Snapshot(); state.Error != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", state.Error)
		return
	}
	if result.Found {
		fmt.Fprintf(os.Stderr, "Loaded %s (type :run to run it)\n", ref)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintln(os.Stderr, "gorupad REPL (type 'exit' to quit, Ctrl+D to exit)")

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		replEval(context.Background(), app, line, os.Stdout, os.Stderr)
	}
}

// replEval handles one REPL entry and prints what it added to the output
// buffer. The typed line is already on screen, so it is run directly rather
// than echoed through App.Submit.
func replEval(ctx context.Context, app *playground.App, line string, stdout, stderr io.Writer) {
	store := app.Store()
	store.ClearError()
	before := store.Snapshot().Output

	switch {
	case line == ":run":
		app.RunEditor(ctx)
	case line == ":source":
		fmt.Fprintln(stdout, store.Snapshot().Source)
		return
	case line == ":clear":
		store.ClearOutput()
		return
	case line == ":packages":
		for _, name := range app.Packages() {
			fmt.Fprintln(stdout, name)
		}
		return
	case playground.IsInstallDirective(line):
		app.Install(ctx, line)
	default:
		app.Run(ctx, line)
	}

	state := store.Snapshot()
	fmt.Fprint(stdout, outputSince(before, state.Output))
	if state.Error != "" {
		fmt.Fprintf(stderr, "Error: %s\n", state.Error)
	}
}

// outputSince returns the lines appended to the output buffer between two
// snapshots, one per line. If the buffer was reset in between, all of next
// is returned. Each append adds a "\n" separator, so an appended empty
// line still yields "\n".
func outputSince(prev, next string) string {
	delta := next
	if strings.HasPrefix(next, prev) {
		delta = next[len(prev):]
	}
	if delta == "" {
		return ""
	}
	return strings.TrimPrefix(delta, "\n") + "\n"
}
