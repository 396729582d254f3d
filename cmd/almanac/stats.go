package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fortuna/almanac/internal/fixture"
)

var (
	statsLeague string
	statsSeason string
)

func init() {
	statsCmd.Flags().StringVar(&statsLeague, "league", "", "Only this league.")
	statsCmd.Flags().StringVar(&statsSeason, "season", "", "Only this season, e.g. 2024/2025 or 2024-25.")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show matches and weeks per league season in the output.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a := newApp(cfg)
		defer a.close()

		out, err := a.output()
		if err != nil {
			return err
		}
		ds, err := out.Load(cmd.Context())
		if err != nil {
			return err
		}
		ds = ds.Select(fixture.Filter{League: statsLeague, Season: statsSeason})

		renderSummary(ds.Summarize(), len(ds))
		return nil
	},
}

func renderSummary(rows []fixture.SeasonSummary, total int) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"League", "Season", "Matches", "Weeks", "Last week"})

	for _, s := range rows {
		t.AppendRow(table.Row{s.League, s.Season, s.Matches, s.Weeks, s.LastWeek})
	}
	t.AppendFooter(table.Row{"", "", total, "", ""})

	t.SetStyle(table.StyleRounded)
	t.Render()
}
