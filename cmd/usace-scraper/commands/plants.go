package commands

import (
	"os"
	"usace-scraper/internal/scrapers/usace"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(plantsCmd)
}

var plantsCmd = &cobra.Command{
	Use:   "plants",
	Short: "Prints the plants that can be scraped.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Plant"})

		for _, p := range usace.KnownPlants {
			t.AppendRow(table.Row{p.ID, p.Name})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
