package models

import "time"

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location
	TopRight   Location
}

// Station is one air-quality monitoring station as reported by the provider.
// AQI is nil when the provider has no current reading; a reading of zero is
// a real value.
type Station struct {
	Name        string   `json:"name"`
	Location    Location `json:"location"`
	AQI         *int     `json:"aqi"`
	County      string   `json:"county,omitempty"`
	Status      string   `json:"status,omitempty"`
	PublishTime string   `json:"publish_time,omitempty"`
}

// HasReading reports whether the station carries an AQI value
func (s Station) HasReading() bool {
	return s.AQI != nil
}

// Directory is the station list produced by a single provider fetch
type Directory struct {
	Stations  []Station `json:"stations"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RGB is an 8-bit color triple
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Fingerprint is the numeric summary of an image used to pick a style.
// Palette holds up to five dominant colors, most populous first.
type Fingerprint struct {
	Palette    []RGB   `json:"dominant_colors"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
}

// Dominant returns the most populous palette color, or black for an empty palette
func (f Fingerprint) Dominant() RGB {
	if len(f.Palette) == 0 {
		return RGB{}
	}
	return f.Palette[0]
}

// Style identifies one of the fixed visualization styles
type Style string

const (
	StyleAirflow   Style = "airflow"
	StyleWaves     Style = "waves"
	StyleBlackhole Style = "blackhole"
)

// Styles lists every style in enumeration order. Ties are broken by this order.
func Styles() []Style {
	return []Style{StyleAirflow, StyleWaves, StyleBlackhole}
}

// Valid reports whether s is one of the known styles
func (s Style) Valid() bool {
	switch s {
	case StyleAirflow, StyleWaves, StyleBlackhole:
		return true
	}
	return false
}
