package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sznuper/tempestmon/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tempestmon",
	Short: "Runs tempest against an OpenStack cloud and reports to Nagios",
	Long: "tempestmon prepares a tempest workdir from hierarchical config, runs a test " +
		"selection, summarizes the result and submits it as a passive check over NRDP.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	registerOptionFlags(rootCmd)
}

// loadConfig finds and loads the settings file, overlays option flags,
// applies defaults and validates.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Resolve(path)
	if err != nil {
		return nil, err
	}
	applyOptionFlags(cmd, cfg)
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger logs text to a terminal and JSON otherwise, on stderr.
func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
