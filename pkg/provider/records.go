package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kass/go-aqi-viz/pkg/geo"
	"github.com/kass/go-aqi-viz/pkg/models"
)

// noReading lists the AQI values the provider uses when a station has no data
var noReading = map[string]bool{
	"":    true,
	"-":   true,
	"ND":  true,
	"N/A": true,
	"NA":  true,
}

// rawResponse mirrors the fields of the provider payload that are consumed.
// Records stay raw so that a missing key can be told apart from an empty one.
type rawResponse struct {
	Records *[]map[string]json.RawMessage `json:"records"`
}

// decodeStations validates the provider body and converts every record.
// Any invalid record fails the whole decode.
func decodeStations(body []byte) ([]models.Station, error) {
	var resp rawResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Detail: fmt.Sprintf("body is not valid JSON: %v", err)}
	}
	if resp.Records == nil {
		return nil, &ProviderError{Detail: `missing "records"`}
	}

	records := *resp.Records
	stations := make([]models.Station, 0, len(records))
	for i, rec := range records {
		st, err := decodeStation(rec)
		if err != nil {
			return nil, &ProviderError{Detail: fmt.Sprintf("record %d: %v", i, err)}
		}
		stations = append(stations, st)
	}
	return stations, nil
}

func decodeStation(rec map[string]json.RawMessage) (models.Station, error) {
	for _, field := range []string{"sitename", "latitude", "longitude", "aqi"} {
		if _, ok := rec[field]; !ok {
			return models.Station{}, fmt.Errorf("missing %q", field)
		}
	}

	name, err := scalar(rec["sitename"])
	if err != nil {
		return models.Station{}, fmt.Errorf("sitename: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Station{}, fmt.Errorf("sitename is empty")
	}

	lat, err := number(rec["latitude"])
	if err != nil {
		return models.Station{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := number(rec["longitude"])
	if err != nil {
		return models.Station{}, fmt.Errorf("longitude: %w", err)
	}
	loc := models.Location{Lat: lat, Lon: lon}
	if err := geo.ValidateLocation(loc); err != nil {
		return models.Station{}, fmt.Errorf("station %q: %w", name, err)
	}

	reading, err := aqiValue(rec["aqi"])
	if err != nil {
		return models.Station{}, fmt.Errorf("aqi of station %q: %w", name, err)
	}

	return models.Station{
		Name:        name,
		Location:    loc,
		AQI:         reading,
		County:      optional(rec, "county"),
		Status:      optional(rec, "status"),
		PublishTime: optional(rec, "publishtime"),
	}, nil
}

// scalar returns the textual form of a JSON string or number
func scalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("want string or number, got %s", raw)
	}
	return n.String(), nil
}

func number(raw json.RawMessage) (float64, error) {
	s, err := scalar(raw)
	if err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}

// aqiValue returns nil for the provider's no-data markers
func aqiValue(raw json.RawMessage) (*int, error) {
	s, err := scalar(raw)
	if err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if noReading[strings.ToUpper(s)] {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%q is not an index value", s)
	}
	if v < 0 {
		return nil, fmt.Errorf("negative index %v", v)
	}
	n := int(math.Round(v))
	return &n, nil
}

func optional(rec map[string]json.RawMessage, field string) string {
	raw, ok := rec[field]
	if !ok {
		return ""
	}
	s, err := scalar(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
