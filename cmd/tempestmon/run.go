package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sznuper/tempestmon/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a tempest test and report the result to NRDP",
	Long: "Prepares a temporary tempest workdir, runs the selected test, summarizes the " +
		"output and submits it as a passive service check. The exit code is the check " +
		"severity (0 OK, 2 CRITICAL), or the setup command's exit code when setup fails. " +
		"Use --dry-run to skip the NRDP submission.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, cfgFile)
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Options.LogLevel)

		req := runner.Request{}
		req.Environment, _ = cmd.Flags().GetString("environment")
		req.Site, _ = cmd.Flags().GetString("site")
		req.Flavor, _ = cmd.Flags().GetString("flavor")
		req.Test, _ = cmd.Flags().GetString("test")
		req.Host, _ = cmd.Flags().GetString("host")
		req.Image, _ = cmd.Flags().GetString("image")
		req.DryRun, _ = cmd.Flags().GetBool("dry-run")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		result := runner.New(cfg, logger).Run(ctx, req)
		stop()

		printResult(os.Stdout, result)
		os.Exit(result.ExitCode)
		return nil
	},
}

func init() {
	runCmd.Flags().StringP("environment", "e", "", "environment to test")
	runCmd.Flags().StringP("flavor", "f", "", "flavor under test")
	runCmd.Flags().StringP("test", "t", "", "test name from the tests section")
	runCmd.Flags().Bool("dry-run", false, "run the tests without submitting to NRDP")
	selectorFlags(runCmd)
	_ = runCmd.MarkFlagRequired("environment")
	_ = runCmd.MarkFlagRequired("test")
	rootCmd.AddCommand(runCmd)
}
