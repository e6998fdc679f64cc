package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kass/go-aqi-viz/pkg/geo"
	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/rtree"
)

// maxRadiusKm is half the earth's circumference
const maxRadiusKm = math.Pi * 6371.0

// fetchDirectory performs the single fetch a request is served from
func (h *Handler) fetchDirectory(ctx context.Context) (models.Directory, error) {
	dir, err := h.services().Fetcher.FetchStations(ctx)
	h.metrics.Fetches.WithLabelValues(fetchResult(err)).Inc()
	if err != nil {
		return models.Directory{}, err
	}
	h.metrics.Stations.Set(float64(len(dir.Stations)))
	return dir, nil
}

func fetchResult(err error) string {
	if err == nil {
		return "ok"
	}
	_, kind, _ := classify(err)
	return kind
}

// nearestAQI returns GET /api/aqi: the reading of the station closest to the
// requested coordinate
func (h *Handler) nearestAQI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := geo.ParseCoordinate(q.Get("latitude"), q.Get("longitude"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dir, err := h.fetchDirectory(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	nearest, err := geo.ResolveNearest(loc, dir.Stations)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	jsonResp(w, http.StatusOK, AQIResponse{
		Status:      statusSuccess,
		StationName: nearest.Station.Name,
		County:      nearest.Station.County,
		AQI:         nearest.Station.AQI,
		AirStatus:   nearest.Station.Status,
		Location:    nearest.Station.Location,
		DistanceKm:  nearest.DistanceKm,
		FetchedAt:   dir.FetchedAt,
	})
}

// listStations returns GET /api/stations: the whole current directory
func (h *Handler) listStations(w http.ResponseWriter, r *http.Request) {
	dir, err := h.fetchDirectory(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	stations := dir.Stations
	if stations == nil {
		stations = []models.Station{}
	}
	jsonResp(w, http.StatusOK, StationsResponse{
		Status:    statusSuccess,
		Count:     len(stations),
		FetchedAt: dir.FetchedAt,
		Stations:  stations,
	})
}

// nearbyStations returns GET /api/stations/nearby: stations within radius_km
// of the coordinate, nearest first, at most limit of them
func (h *Handler) nearbyStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := geo.ParseCoordinate(q.Get("latitude"), q.Get("longitude"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	radius := defaultRadiusKm
	if raw := strings.TrimSpace(q.Get("radius_km")); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(radius) || radius <= 0 || radius > maxRadiusKm {
			h.fail(w, r, invalidInput("radius_km must be a number in (0, %.0f]", maxRadiusKm))
			return
		}
	}

	limit := h.opts.NearbyLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.fail(w, r, invalidInput("limit must be a positive integer"))
			return
		}
	}

	dir, err := h.fetchDirectory(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(dir.Stations) == 0 {
		h.fail(w, r, geo.ErrEmptyDirectory)
		return
	}

	start := time.Now()
	hits, err := h.stationIndex(dir).QueryRadius(loc, radius)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	if hits == nil {
		hits = []rtree.Hit{}
	}
	h.logger.Debug("nearby query",
		"hits", len(hits),
		"radius_km", radius,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	jsonResp(w, http.StatusOK, NearbyResponse{
		Status:    statusSuccess,
		Center:    loc,
		RadiusKm:  radius,
		Count:     len(hits),
		FetchedAt: dir.FetchedAt,
		Stations:  hits,
	})
}
