package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/gorupad/pypi"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Manage Python packages for the playground",
	Long: `Install and manage Python packages outside a playground session.

Packages are downloaded directly from PyPI (no pip required) into the
packages directory, which every session mounts read-only.
Only pure Python wheels are supported - packages with C extensions won't work.`,
}

var depsInstallCmd = &cobra.Command{
	Use:   "install [packages...]",
	Short: "Install packages from PyPI",
	Args:  cobra.MinimumNArgs(1),
	Run:   runDepsInstall,
}

var depsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Run:   runDepsList,
}

var depsRemoveCmd = &cobra.Command{
	Use:   "remove [packages...]",
	Short: "Remove packages",
	Args:  cobra.MinimumNArgs(1),
	Run:   runDepsRemove,
}

var depsCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Compilation cache commands",
}

var depsCacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the interpreter compilation cache",
	Run:   runDepsCacheClear,
}

func init() {
	depsCacheCmd.AddCommand(depsCacheClearCmd)
	depsCmd.AddCommand(depsInstallCmd, depsListCmd, depsRemoveCmd, depsCacheCmd)
	rootCmd.AddCommand(depsCmd)
}

// newInstaller returns the installer for the configured packages dir and a
// func that closes its log file.
func newInstaller(cmd *cobra.Command) (*pypi.Installer, func() error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	installer := pypi.NewInstaller(cfg.Packages.Dir,
		pypi.WithIndexURL(cfg.Packages.IndexURL),
		pypi.WithLogger(logger))
	return installer, closeLog
}

func runDepsInstall(cmd *cobra.Command, args []string) {
	installer, closeLog := newInstaller(cmd)
	defer closeLog()

	if err := os.MkdirAll(installer.Dir(), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, spec := range args {
		name, _ := pypi.ParseSpec(spec)
		fmt.Fprintf(cmd.OutOrStdout(), "Installing %s...\n", name)

		err := installer.Install(context.Background(), spec)
		switch {
		case err == nil:
		case errors.Is(err, pypi.ErrBlocked):
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Only pure-Python packages can run in the sandbox\n")
			os.Exit(1)
		default:
			fmt.Fprintf(os.Stderr, "Error installing %s: %v\n", name, err)
			os.Exit(1)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Done.")
}

func runDepsList(cmd *cobra.Command, args []string) {
	installer, closeLog := newInstaller(cmd)
	defer closeLog()
	out := cmd.OutOrStdout()

	names, err := installer.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "No packages installed.")
		return
	}

	fmt.Fprintf(out, "Packages in %s:\n", installer.Dir())
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", name)
	}
}

func runDepsRemove(cmd *cobra.Command, args []string) {
	installer, closeLog := newInstaller(cmd)
	defer closeLog()

	for _, name := range args {
		if err := installer.Remove(name); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to remove %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
	}
}

func runDepsCacheClear(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Python.CompileCache == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Compilation cache is disabled.")
		return
	}
	if err := os.RemoveAll(cfg.Python.CompileCache); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to clear cache: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
}
