package commands

import (
	"context"
	"fmt"
	"log/slog"
	"usace-scraper/internal/components/chrono"
	"usace-scraper/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	daemonCron *string
	daemonNow  *bool
)

func init() {
	daemonCron = daemonCmd.Flags().String("cron", "", "The cron schedule to scrape on (America/Chicago), overrides the config.")
	daemonNow = daemonCmd.Flags().Bool("now", false, "Also scrape once immediately.")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon [--cron <spec>] [--now]",
	Short: "Scrapes on a cron schedule until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config
		if *daemonCron != "" {
			cfg.Cron = *daemonCron
		}
		// fail early on bad configuration instead of on every tick
		_, err := cfg.scraperOptions()
		if err != nil {
			return err
		}

		tel := telemetry.NewSlogAPI()
		job := func() {
			err := scrapeOnce(ctx, cfg, tel, false)
			if err != nil {
				slog.Error("scheduled scrape failed", "err", err)
			}
		}

		slog.Info("daemon starting", "cron", cfg.Cron, "plant", cfg.Plant, "out", cfg.OutputDir)
		return runDaemon(ctx, chrono.NewStandardCron(tel), cfg.Cron, *daemonNow, job)
	},
}

// runDaemon schedules `job` and blocks until ctx is done, the scheduler is
// stopped (waiting for a running job) before returning.
func runDaemon(ctx context.Context, cron chrono.CronAPI, spec string, now bool, job func()) error {
	defer cron.Stop()

	err := cron.Cron(spec, job)
	if err != nil {
		return fmt.Errorf("schedule '%s': %w", spec, err)
	}
	if now {
		job()
	}

	<-ctx.Done()
	slog.Info("daemon stopping")
	return nil
}
