package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sznuper/tempestmon/internal/runner"
	"github.com/sznuper/tempestmon/internal/selector"
)

var setupCmd = &cobra.Command{
	Use:   "setup <workdir>",
	Short: "Prepare a tempest workdir and write its tempest.conf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, cfgFile)
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Options.LogLevel)

		env, _ := cmd.Flags().GetString("environment")
		site, _ := cmd.Flags().GetString("site")
		job, _ := cmd.Flags().GetString("job")
		host, _ := cmd.Flags().GetString("host")
		image, _ := cmd.Flags().GetString("image")

		sel, err := selector.New(env, site, job, host, image)
		if err != nil {
			return err
		}

		workdir := args[0]
		if err := os.MkdirAll(workdir, 0o755); err != nil {
			return fmt.Errorf("creating workdir: %w", err)
		}

		err = runner.New(cfg, logger).Setup(context.Background(), sel, workdir)
		var ee *runner.ExitError
		if errors.As(err, &ee) {
			fmt.Printf("setup return error: %d\n", ee.Code)
			os.Exit(ee.Code)
		}
		return err
	},
}

func init() {
	setupCmd.Flags().StringP("environment", "e", "production", "environment to configure")
	setupCmd.Flags().StringP("job", "j", "", "job name used for hierarchy lookups")
	selectorFlags(setupCmd)
	rootCmd.AddCommand(setupCmd)
}
