package api

import (
	"time"

	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/rtree"
	"github.com/kass/go-aqi-viz/pkg/viz"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AQIResponse is returned by GET /api/aqi. AQI is null when the station has
// no current reading.
type AQIResponse struct {
	Status      string          `json:"status"`
	StationName string          `json:"station_name"`
	County      string          `json:"county,omitempty"`
	AQI         *int            `json:"aqi"`
	AirStatus   string          `json:"air_status,omitempty"`
	Location    models.Location `json:"location"`
	DistanceKm  float64         `json:"distance_km"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// StationsResponse is returned by GET /api/stations
type StationsResponse struct {
	Status    string           `json:"status"`
	Count     int              `json:"count"`
	FetchedAt time.Time        `json:"fetched_at"`
	Stations  []models.Station `json:"stations"`
}

// NearbyResponse is returned by GET /api/stations/nearby
type NearbyResponse struct {
	Status    string          `json:"status"`
	Center    models.Location `json:"center"`
	RadiusKm  float64         `json:"radius_km"`
	Count     int             `json:"count"`
	FetchedAt time.Time       `json:"fetched_at"`
	Stations  []rtree.Hit     `json:"stations"`
}

// VisualizationResponse is returned by POST /api/visualization. The detail
// fields are only set when the request asks for them.
type VisualizationResponse struct {
	Status        string                   `json:"status"`
	Style         models.Style             `json:"visualization_style_id"`
	StyleName     string                   `json:"visualization_name"`
	Template      string                   `json:"template"`
	DominantColor models.RGB               `json:"dominant_color"`
	AQI           int                      `json:"aqi"`
	Features      *models.Fingerprint      `json:"features,omitempty"`
	Scores        map[models.Style]float64 `json:"scores,omitempty"`
	Fallback      *bool                    `json:"fallback,omitempty"`
}

// AppInventorResponse is the flat shape consumed by App Inventor clients
type AppInventorResponse struct {
	Status        string       `json:"status"`
	Visualization models.Style `json:"visualization"`
	DominantColor models.RGB   `json:"dominant_color"`
}

// StylesResponse is returned by GET /api/styles
type StylesResponse struct {
	Status string     `json:"status"`
	Styles []viz.Info `json:"styles"`
}
