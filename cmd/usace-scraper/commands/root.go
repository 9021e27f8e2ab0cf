package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"usace-scraper/internal/components/telemetry"

	"github.com/spf13/cobra"
)

const serviceName = "usace-scraper"

var (
	verbose    *bool
	configPath *string

	// populated before any subcommand runs
	config  Config
	otelSdk telemetry.Telemetry
)

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information.")
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The configuration file, <name>.local.json5 next to it overrides it.")
}

var rootCmd = &cobra.Command{
	Use:   "usace-scraper",
	Short: "usace-scraper scrapes hourly hydropower generation schedules published by the USACE.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(os.Stderr, *verbose)

		var err error
		// without an explicit --config the default name is looked up from
		// the working directory upwards
		config, err = loadConfig(*configPath, !cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}

		otelSdk, err = telemetry.Setup(cmd.Context(), serviceName, config.Telemetry)
		if err != nil {
			slog.Warn("failed to setup opentelemetry exporters, continuing without them", "err", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := otelSdk.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to flush opentelemetry exporters", "err", err)
		}
	},
	SilenceUsage: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
