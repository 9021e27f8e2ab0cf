package commands

import (
	"fmt"
	"io"
	"os"
	"usace-scraper/internal/publish"
	"usace-scraper/internal/scrapers/usace"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var showOut *string

func init() {
	showOut = showCmd.Flags().String("out", "", "The directory results were written to, overrides the config.")
	rootCmd.AddCommand(showCmd)
}

func renderResult(out io.Writer, result usace.ScrapeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s (%s) - %s", result.Plant, result.PlantID, result.Source))
	t.AppendHeader(table.Row{"Date", "Time", "Generation (MW)", "Status"})

	for _, day := range result.Schedules.All() {
		for _, p := range day.Periods {
			t.AppendRow(table.Row{day.Date, p.Time, p.Generation, p.Status})
		}
		t.AppendSeparator()
	}

	stats := result.Statistics
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d days", stats.TotalDays),
		fmt.Sprintf("%d periods", stats.TotalPeriods),
		fmt.Sprintf("avg %.0f / max %.0f / min %.0f", stats.AverageGeneration, stats.PeakGeneration, stats.MinGeneration),
		stats.ScrapedAt.Format("2006-01-02 15:04 MST"),
	})

	t.SetStyle(table.StyleRounded)
	t.Render()
}

var showCmd = &cobra.Command{
	Use:   "show [--out <dir>]",
	Short: "Prints the latest result that was written.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := config.OutputDir
		if *showOut != "" {
			dir = *showOut
		}
		result, err := publish.ReadLatest(dir)
		if err != nil {
			return err
		}
		renderResult(os.Stdout, result)
		return nil
	},
}
