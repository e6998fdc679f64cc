// Package geo resolves the monitoring station nearest to a coordinate using
// great-circle distance on a spherical earth.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kass/go-aqi-viz/pkg/models"
)

const earthRadius = 6371.0 // km

var (
	// ErrInvalidCoordinate is returned for non-numeric, non-finite or out of range input
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrEmptyDirectory is returned when there are no stations to resolve against
	ErrEmptyDirectory = errors.New("station directory is empty")
)

// Haversine returns the great-circle distance between a and b in kilometers
func Haversine(a, b models.Location) float64 {
	lat1Rad := a.Lat * math.Pi / 180.0
	lat2Rad := b.Lat * math.Pi / 180.0

	dLat := (b.Lat - a.Lat) * math.Pi / 180.0
	dLon := (b.Lon - a.Lon) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadius * c
}

// ValidateLocation checks that loc is finite and inside [-90,90] x [-180,180]
func ValidateLocation(loc models.Location) error {
	if math.IsNaN(loc.Lat) || math.IsInf(loc.Lat, 0) {
		return fmt.Errorf("%w: latitude is not a finite number", ErrInvalidCoordinate)
	}
	if math.IsNaN(loc.Lon) || math.IsInf(loc.Lon, 0) {
		return fmt.Errorf("%w: longitude is not a finite number", ErrInvalidCoordinate)
	}
	if loc.Lat < -90 || loc.Lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, loc.Lat)
	}
	if loc.Lon < -180 || loc.Lon > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, loc.Lon)
	}
	return nil
}

// ParseCoordinate converts raw request values into a validated location.
// Missing or malformed input is an error; there is no default location.
func ParseCoordinate(lat, lon string) (models.Location, error) {
	latV, err := parseDegrees("latitude", lat)
	if err != nil {
		return models.Location{}, err
	}
	lonV, err := parseDegrees("longitude", lon)
	if err != nil {
		return models.Location{}, err
	}

	loc := models.Location{Lat: latV, Lon: lonV}
	if err := ValidateLocation(loc); err != nil {
		return models.Location{}, err
	}
	return loc, nil
}

func parseDegrees(field, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidCoordinate, field)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidCoordinate, field, raw)
	}
	return v, nil
}
