package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sznuper/tempestmon/internal/accounts"
	"github.com/sznuper/tempestmon/internal/config"
	"github.com/sznuper/tempestmon/internal/process"
	"github.com/sznuper/tempestmon/internal/scheduler"
	"github.com/sznuper/tempestmon/internal/selector"
	"github.com/sznuper/tempestmon/internal/tempestconf"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config, accounts files and commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, cfgFile)
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Options.LogLevel)

		out := cmd.OutOrStdout()
		printCheck(out, "config "+cfg.Path, nil)
		failed := false

		for _, path := range accountsFiles(cfg) {
			acct, err := accounts.Load(path)
			label := "accounts " + path
			if err == nil {
				label += " (" + acct.String() + ")"
			}
			printCheck(out, label, err)
			failed = failed || err != nil
		}

		for _, name := range commands(cfg) {
			path, err := process.Resolve(name, cfg.Options.Virtualenv)
			label := "command " + name
			if err == nil {
				label += " → " + path
			}
			printCheck(out, label, err)
			failed = failed || err != nil
		}

		err = scheduler.New(logger).Load(cfg.Schedules, nil)
		printCheck(out, fmt.Sprintf("schedules (%d)", len(cfg.Schedules)), err)
		failed = failed || err != nil

		if failed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// accountsFiles lists every credentials file a run could select: one per
// environment, one per scheduled site and the operator file.
func accountsFiles(cfg *config.Config) []string {
	dir := cfg.Options.AccountsDir
	var paths []string
	for env := range cfg.Environments {
		paths = append(paths, tempestconf.AccountsFile(dir, selector.Set{Environment: env}))
	}
	for _, s := range cfg.Schedules {
		paths = append(paths, tempestconf.AccountsFile(dir, selector.Set{Environment: s.Environment, Site: s.Site}))
	}
	paths = append(paths, tempestconf.AccountsFile(dir, selector.Set{Job: selector.OperatorJobPrefix}))

	slices.Sort(paths)
	return slices.Compact(paths)
}

func commands(cfg *config.Config) []string {
	names := []string{cfg.Runner.InitCommand[0], cfg.Runner.TestCommand[0]}
	if cfg.Resolver.Type == "hiera" {
		names = append(names, cfg.Resolver.Command[0])
	}
	return names
}

func printCheck(w io.Writer, label string, err error) {
	if err != nil {
		fmt.Fprintf(w, "%s %s\n", failStyle.Render("✗"), label)
		fmt.Fprintf(w, "  %s\n", err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", okStyle.Render("✓"), label)
}
