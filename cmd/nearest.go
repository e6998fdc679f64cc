package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kass/go-aqi-viz/internal/config"
	"github.com/kass/go-aqi-viz/pkg/geo"
	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/rtree"
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the station nearest to a coordinate",
	Long: `Resolve the nearest monitoring station for --lat/--lon, either from a live
provider fetch or from a snapshot written by "aqiviz fetch".`,
	RunE: runNearest,
}

var (
	nearestLat      string
	nearestLon      string
	nearestSnapshot string
	nearestK        int
)

func init() {
	nearestCmd.Flags().StringVar(&nearestLat, "lat", "", "Latitude in degrees")
	nearestCmd.Flags().StringVar(&nearestLon, "lon", "", "Longitude in degrees")
	nearestCmd.Flags().StringVarP(&nearestSnapshot, "snapshot", "s", "", "Snapshot file instead of a live fetch")
	nearestCmd.Flags().IntVarP(&nearestK, "neighbors", "k", 1, "Number of stations to list")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")
}

func runNearest(cmd *cobra.Command, _ []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	loc, err := geo.ParseCoordinate(nearestLat, nearestLon)
	if err != nil {
		return err
	}

	dir, err := loadDirectory(cmd.Context(), cfg, nearestSnapshot)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())

	if nearestK <= 1 {
		n, err := geo.ResolveNearest(loc, dir.Stations)
		if err != nil {
			return err
		}
		p.Title("Nearest station")
		printStation(p, n.Station, n.DistanceKm)
		p.Note("directory fetched %s, %d stations", dir.FetchedAt.Format("2006-01-02 15:04:05"), len(dir.Stations))
		return nil
	}

	hits, err := rtree.New(dir).NearestNeighbors(loc, nearestK)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return geo.ErrEmptyDirectory
	}
	p.Title(fmt.Sprintf("%d nearest stations", len(hits)))
	for i, h := range hits {
		p.Note("#%d", i+1)
		printStation(p, h.Station, h.DistanceKm)
	}
	return nil
}

func printStation(p *printer, st models.Station, distanceKm float64) {
	p.Field("Station", "%s", st.Name)
	if st.County != "" {
		p.Field("County", "%s", st.County)
	}
	p.Field("AQI", "%s", formatAQI(st.AQI))
	if st.Status != "" {
		p.Field("Status", "%s", st.Status)
	}
	p.Field("Distance", "%.2f km", distanceKm)
}

// loadDirectory reads a gob snapshot when path is set, otherwise fetches live
func loadDirectory(ctx context.Context, cfg *config.Config, path string) (models.Directory, error) {
	if path != "" {
		return rtree.LoadSnapshot(path)
	}
	return newFetcher(cfg, nil, nil).FetchStations(ctx)
}
