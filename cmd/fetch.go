package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kass/go-aqi-viz/pkg/rtree"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the station directory and save a snapshot",
	Long: `Fetch the current station directory from the provider and write it as a gob
snapshot for "nearest --snapshot" and "bench". Readings are also archived when an
archive is configured.`,
	RunE: runFetch,
}

var fetchOut string

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "stations.gob", "Snapshot file path")
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	dir, err := newFetcher(cfg, store, logger).FetchStations(ctx)
	if err != nil {
		return err
	}

	if err := rtree.SaveSnapshot(fetchOut, dir); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	withReading := 0
	for _, st := range dir.Stations {
		if st.HasReading() {
			withReading++
		}
	}

	p := newPrinter(cmd.OutOrStdout())
	p.Title("Station directory")
	p.Field("Stations", "%d", len(dir.Stations))
	p.Field("With reading", "%d", withReading)
	p.Field("Fetched at", "%s", dir.FetchedAt.Format("2006-01-02 15:04:05"))
	p.Field("Saved to", "%s", fetchOut)
	return nil
}
