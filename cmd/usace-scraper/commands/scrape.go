package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"usace-scraper/internal/components/chrono"
	"usace-scraper/internal/components/telemetry"
	"usace-scraper/internal/publish"
	"usace-scraper/internal/scrapers/usace"

	"github.com/spf13/cobra"
)

var (
	scrapePlant      *string
	scrapeOut        *string
	scrapeDates      *string
	scrapeParser     *string
	scrapeDebugDir   *string
	scrapeNoFallback *bool
)

func init() {
	scrapePlant = scrapeCmd.Flags().String("plant", "", "The plant identifier or name, overrides the config.")
	scrapeOut = scrapeCmd.Flags().String("out", "", "The directory to write results to, overrides the config.")
	scrapeDates = scrapeCmd.Flags().String("dates", "", "Which dates to scrape: 'all' or the size of the trailing window.")
	scrapeParser = scrapeCmd.Flags().String("parser", "", "The table extractor to use: 'regex' or 'dom'.")
	scrapeDebugDir = scrapeCmd.Flags().String("debug-dir", "", "Dump every http exchange into this directory.")
	scrapeNoFallback = scrapeCmd.Flags().Bool("no-fallback", false, "Fail instead of writing fallback data when the live scrape fails.")
	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeFlags overrides the loaded config with the flags that were set.
func applyScrapeFlags(cfg Config) (Config, error) {
	if *scrapePlant != "" {
		cfg.Plant = *scrapePlant
	}
	if *scrapeOut != "" {
		cfg.OutputDir = *scrapeOut
	}
	if *scrapeDates != "" {
		dates, err := parseDatesFlag(*scrapeDates)
		if err != nil {
			return cfg, err
		}
		cfg.Dates = dates
	}
	if *scrapeParser != "" {
		cfg.Parser = *scrapeParser
	}
	if *scrapeDebugDir != "" {
		cfg.DebugDir = *scrapeDebugDir
	}
	return cfg, nil
}

// scrapeOnce runs one scrape and publishes its result. Without `noFallback`
// a failed live scrape still publishes the fallback dataset.
func scrapeOnce(ctx context.Context, cfg Config, tel telemetry.API, noFallback bool) error {
	opts, err := cfg.scraperOptions()
	if err != nil {
		return err
	}
	scraper, err := usace.NewScraper(opts, chrono.NewStandardTime(), tel)
	if err != nil {
		return err
	}

	start := time.Now()
	var result usace.ScrapeResult
	if noFallback {
		result, err = scraper.Scrape(ctx)
		if err != nil {
			return fmt.Errorf("live scrape failed: %w", err)
		}
	} else {
		var degraded bool
		result, degraded = scraper.Run(ctx)
		// an interrupted run must not replace good data with the fallback
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if degraded {
			slog.Warn("live scrape failed, publishing fallback data", "plant", opts.Plant.ID)
		}
	}

	written, err := publish.NewWriter(cfg.OutputDir, tel).Write(result)
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	slog.Info(
		"scrape complete",
		"plant", result.PlantID,
		"source", result.Source,
		"days", result.Statistics.TotalDays,
		"periods", result.Statistics.TotalPeriods,
		"files", len(written),
		"seconds", time.Since(start).Seconds(),
	)
	return nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--plant <id>] [--out <dir>] [--dates all|<n>] [--parser regex|dom] [--debug-dir <dir>] [--no-fallback]",
	Short: "Scrapes the generation schedule once and writes the results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := applyScrapeFlags(config)
		if err != nil {
			return err
		}
		return scrapeOnce(cmd.Context(), cfg, telemetry.NewSlogAPI(), *scrapeNoFallback)
	},
}
