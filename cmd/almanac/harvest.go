package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fortuna/almanac/internal/harvest"
)

func init() {
	rootCmd.AddCommand(harvestCmd)
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest new weeks for every configured league and commit the dataset.",
	Long: `Loads the dataset, folds in a checkpoint left by an interrupted run, resumes
each league from its last stored week and writes the result to the output
and its mirrors. Ctrl-C stops the run after writing a checkpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a := newApp(cfg)
		defer a.close()

		runner, err := a.runner(cmd.Context())
		if err != nil {
			return err
		}

		rep := harvest.MultiReporter{&consoleReporter{logger: a.logger}, a.notifier()}
		res, err := runner.Harvest(cmd.Context(), rep)
		if errors.Is(err, harvest.ErrInterrupted) && res.Checkpoint != "" {
			a.logger.Printf("Run again to continue from %s", res.Checkpoint)
		}
		return err
	},
}
