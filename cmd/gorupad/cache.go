package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/gorupad/snippetcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached snippets",
	Long: `Inspect and clear the local cache of fetched gist snippets.

A cached snippet is loaded without contacting GitHub, so edits made to
the gist after it was first opened are not picked up until it is removed.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached snippets",
	Run:   runCacheList,
}

var cacheRemoveCmd = &cobra.Command{
	Use:   "rm [playground-url]",
	Short: "Remove one cached snippet",
	Args:  cobra.MaximumNArgs(1),
	Run:   runCacheRemove,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached snippets",
	Run:   runCacheClear,
}

func init() {
	addSnippetFlags(cacheRemoveCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheRemoveCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache(cmd *cobra.Command) *snippetcache.Cache {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cache, err := snippetcache.Open(cfg.Cache.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cache
}

func runCacheList(cmd *cobra.Command, args []string) {
	cache := openCache(cmd)
	defer cache.Close()
	out := cmd.OutOrStdout()

	entries, err := cache.List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No cached snippets.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(out, "  %-40s %6d bytes  %s\n", e.Key, e.Size, e.UpdatedAt.Format(time.DateTime))
	}
}

func runCacheRemove(cmd *cobra.Command, args []string) {
	ref, err := snippetRef(cmd, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ref.Valid() {
		fmt.Fprintln(os.Stderr, "Error: both a gist id and a file name are required")
		os.Exit(1)
	}

	cache := openCache(cmd)
	defer cache.Close()

	if err := cache.Delete(context.Background(), ref.CacheKey()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", ref)
}

func runCacheClear(cmd *cobra.Command, args []string) {
	cache := openCache(cmd)
	defer cache.Close()

	n, err := cache.Clear(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached snippets.\n", n)
}
