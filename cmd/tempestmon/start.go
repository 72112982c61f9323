package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sznuper/tempestmon/internal/config"
	"github.com/sznuper/tempestmon/internal/runner"
	"github.com/sznuper/tempestmon/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run scheduled checks until stopped",
	Long: "Runs every entry of the schedules section on its cron expression, one " +
		"at a time. The config file is watched and reloaded on change; a reload " +
		"that fails validation is logged and the previous schedules keep running.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, cfgFile)
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Options.LogLevel)
		if len(cfg.Schedules) == 0 {
			return errors.New("no schedules configured")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sched := scheduler.New(logger)
		if err := loadSchedules(sched, cfg, logger); err != nil {
			return err
		}

		go func() {
			err := scheduler.Watch(ctx, cfg.Path, logger, func() {
				next, err := loadConfig(cmd, cfg.Path)
				if err != nil {
					logger.Error("config reload failed, keeping previous schedules", "error", err)
					return
				}
				if err := loadSchedules(sched, next, logger); err != nil {
					logger.Error("config reload failed, keeping previous schedules", "error", err)
					return
				}
				logger.Info("config reloaded", "path", next.Path, "schedules", len(next.Schedules))
			})
			if err != nil {
				logger.Error("config watch stopped", "error", err)
			}
		}()

		logger.Info("daemon started", "config", cfg.Path, "schedules", len(cfg.Schedules))
		if err := sched.Start(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func loadSchedules(sched *scheduler.Scheduler, cfg *config.Config, logger *slog.Logger) error {
	r := runner.New(cfg, logger)
	return sched.Load(cfg.Schedules, func(ctx context.Context, s config.Schedule) {
		result := r.Run(ctx, runner.RequestFromSchedule(s))
		printResult(os.Stdout, result)
	})
}
