package main

import (
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run check cycles on a schedule until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		checker, st, err := buildChecker(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		schedule, _ := cmd.Flags().GetString("schedule")
		if schedule == "" {
			schedule = cfg.Watch.Schedule
		}

		// A slow cycle outlasting the schedule interval is skipped, not
		// stacked: cycles are read-modify-write over the store.
		c := cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(zap.L()))),
		))
		_, err = c.AddFunc(schedule, func() {
			if _, err := checker.Run(ctx); err != nil {
				zap.L().Error("watch: cycle failed", zap.Error(err))
			}
		})
		if err != nil {
			return eris.Wrapf(err, "watch: parse schedule %q", schedule)
		}

		// One cycle right away so a fresh daemon reports immediately.
		if _, err := checker.Run(ctx); err != nil {
			zap.L().Error("watch: initial cycle failed", zap.Error(err))
		}

		zap.L().Info("watch: scheduler started", zap.String("schedule", schedule))
		c.Start()
		<-ctx.Done()

		zap.L().Info("watch: shutting down")
		stopCtx := c.Stop()
		<-stopCtx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().String("schedule", "", "cron schedule (overrides config)")
	rootCmd.AddCommand(watchCmd)
}
