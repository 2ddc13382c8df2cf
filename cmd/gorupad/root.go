package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/caffeineduck/gorupad/config"
	"github.com/caffeineduck/gorupad/playground"
	"github.com/caffeineduck/gorupad/tui"
)

var rootCmd = &cobra.Command{
	Use:   "gorupad [playground-url]",
	Short: "Python playground running on WebAssembly",
	Long: `gorupad - a Python playground backed by a WebAssembly interpreter.

Without a subcommand, gorupad opens the terminal playground: an editor, a
terminal pane and a status line. Pass a playground URL
("https://host/?gist=<id>&file=<name>") or --gist/--file to load a shared
snippet. Lines like "# @pip requests" in a snippet install packages before
the playground becomes ready.

Inside the terminal pane, "pip install <name>" installs a pure-Python
package from PyPI; any other line runs as Python.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPlayground,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
	addSnippetFlags(rootCmd)
}

// addConfigFlags registers the flags loadConfig reads.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (default: $GORUPAD_CONFIG or <user config dir>/gorupad/config.yaml)")
	fs.String("wasm", "", "Path to the Python WASI binary")
	fs.String("packages", "", "Directory for installed packages")
	fs.String("index-url", "", "Package index base URL")
	fs.Bool("no-cache", false, "Disable compilation cache")
	fs.String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	fs.Duration("run-timeout", 0, "Execution timeout per run (0 means none)")
	fs.Bool("allow-pkg-install", false, "Let sandboxed code install packages with install_pkg()")
	fs.StringSlice("allow-pkg", nil, "Restrict install_pkg() to these packages (repeatable)")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("log-file", "", "Write logs to this file")
	fs.Bool("no-snippet-cache", false, "Do not cache fetched snippets")
}

func addSnippetFlags(cmd *cobra.Command) {
	cmd.Flags().String("gist", "", "Gist id to load the snippet from")
	cmd.Flags().String("file", "", "File inside the gist")
}

// loadConfig reads the config file and applies flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("wasm") {
		cfg.Python.Wasm, _ = flags.GetString("wasm")
	}
	if flags.Changed("packages") {
		cfg.Packages.Dir, _ = flags.GetString("packages")
	}
	if flags.Changed("index-url") {
		cfg.Packages.IndexURL, _ = flags.GetString("index-url")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.Python.CompileCache = ""
	}
	if flags.Changed("memory") {
		cfg.Python.MemoryLimit, _ = flags.GetString("memory")
	}
	if flags.Changed("run-timeout") {
		cfg.Python.RunTimeout, _ = flags.GetDuration("run-timeout")
	}
	if flags.Changed("allow-pkg-install") {
		cfg.Packages.GuestInstall, _ = flags.GetBool("allow-pkg-install")
	}
	if flags.Changed("allow-pkg") {
		cfg.Packages.Allowed, _ = flags.GetStringSlice("allow-pkg")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-file") {
		cfg.Log.File, _ = flags.GetString("log-file")
	}
	if noSnippetCache, _ := flags.GetBool("no-snippet-cache"); noSnippetCache {
		cfg.Cache.Disabled = true
	}

	return cfg, cfg.Validate()
}

// snippetRef resolves the snippet to load from --gist/--file or from a
// playground URL argument. Flags win over the URL.
func snippetRef(cmd *cobra.Command, args []string) (playground.SnippetRef, error) {
	var ref playground.SnippetRef
	if len(args) > 0 {
		parsed, err := playground.ParseSnippetRef(args[0])
		if err != nil {
			return ref, err
		}
		ref = parsed
	}
	if id, _ := cmd.Flags().GetString("gist"); id != "" {
		ref.DocumentID = id
	}
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		ref.File = file
	}
	return ref, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPlayground(cmd *cobra.Command, args []string) {
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

	// The alternate screen owns the terminal, so logs only go to a file.
	logger, closeLog, err := newLogger(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	app, cleanup := newApp(cfg, logger)
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	if err := tui.Run(ctx, app, ref); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
