package geo

import "github.com/kass/go-aqi-viz/pkg/models"

// Nearest is the outcome of a resolution: the winning station, its position in
// the input slice and its distance from the query in kilometers
type Nearest struct {
	Station    models.Station
	Index      int
	DistanceKm float64
}

// ResolveNearest scans stations and returns the one closest to query.
// Exact distance ties keep the station that appears first in stations.
func ResolveNearest(query models.Location, stations []models.Station) (Nearest, error) {
	if err := ValidateLocation(query); err != nil {
		return Nearest{}, err
	}
	if len(stations) == 0 {
		return Nearest{}, ErrEmptyDirectory
	}

	best := Nearest{Index: -1}
	for i, st := range stations {
		d := Haversine(query, st.Location)
		if best.Index < 0 || d < best.DistanceKm {
			best = Nearest{Station: st, Index: i, DistanceKm: d}
		}
	}
	return best, nil
}
