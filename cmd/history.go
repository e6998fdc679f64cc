package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived readings of a station",
	RunE:  runHistory,
}

var (
	historyStation string
	historyLimit   int
)

func init() {
	historyCmd.Flags().StringVar(&historyStation, "station", "", "Station name")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 24, "Maximum readings, newest first (0 for all)")
	_ = historyCmd.MarkFlagRequired("station")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	if !cfg.Archive.Enabled() {
		return errors.New("archive is not configured: set archive.driver and archive.dsn")
	}

	ctx := cmd.Context()
	store, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	readings, err := store.History(ctx, historyStation, historyLimit)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	p.Title("History of " + historyStation)
	if len(readings) == 0 {
		p.Note("no archived readings")
		return nil
	}
	for _, r := range readings {
		p.Field(r.FetchedAt.Local().Format("01-02 15:04"), "%s", formatAQI(r.Station.AQI))
	}
	return nil
}
