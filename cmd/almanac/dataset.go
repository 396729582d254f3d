package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/reconciliation"
	"github.com/fortuna/almanac/internal/store"
)

func init() {
	rootCmd.AddCommand(convertCmd, cleanCmd, importCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Rewrite a dataset from the composite week label layout.",
	Long: `Reduces week labels such as "5 (12.09.2024 - 15.09.2024)" to "5", gives
short dates their year from the label's range and canonicalises seasons.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a := newApp(cfg)
		defer a.close()

		final, err := a.finalStore(cmd.Context())
		if err != nil {
			return err
		}
		ds, err := final.Load(cmd.Context())
		if err != nil {
			return err
		}

		out, st := reconciliation.ConvertLegacy(ds)
		a.logger.Printf("%d rows: %d converted, %d already current, %d dates without year",
			st.Total, st.Converted, st.Skipped, st.Unresolved)

		if err := final.Save(cmd.Context(), out); err != nil {
			return err
		}
		a.logger.Printf("✓ Wrote %d rows to %s", len(out), final.Location())
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop every row that is not a full-time result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a := newApp(cfg)
		defer a.close()

		final, err := a.finalStore(cmd.Context())
		if err != nil {
			return err
		}
		ds, err := final.Load(cmd.Context())
		if err != nil {
			return err
		}

		out, removed := reconciliation.KeepFullTime(ds)
		if removed == 0 {
			a.logger.Println("Nothing to remove")
			return nil
		}
		if err := final.Save(cmd.Context(), out); err != nil {
			return err
		}
		a.logger.Printf("✓ Removed %d rows, %d left in %s", removed, len(out), final.Location())
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Fold dataset files into the output.",
	Long: `Files are merged in the order given, after the current output, so later
files replace the weeks they share with earlier ones. Rows without a season
take it from the file name, e.g. fixtures_2023-2024.xlsx.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a := newApp(cfg)
		defer a.close()
		ctx := cmd.Context()

		final, err := a.finalStore(ctx)
		if err != nil {
			return err
		}
		current, err := final.Load(ctx)
		if err != nil {
			return err
		}

		sets := []fixture.Dataset{current}
		for _, path := range args {
			src, err := store.NewFileStore(path)
			if err != nil {
				return err
			}
			ds, err := src.Load(ctx)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			ds = reconciliation.FillSeason(ds, fixture.SeasonFromFilename(filepath.Base(path)))
			a.logger.Printf("  %s: %d rows", path, len(ds))
			sets = append(sets, ds)
		}

		out := reconciliation.Fold(sets...)
		if err := final.Save(ctx, out); err != nil {
			return err
		}
		a.logger.Printf("✓ %d rows before, %d after, written to %s", len(current), len(out), final.Location())
		return nil
	},
}
