package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set is the service's metric catalogue
type Set struct {
	Registry *Registry

	Requests    *prometheus.CounterVec // route, code
	Latency     *prometheus.SummaryVec // route
	Fetches     *prometheus.CounterVec // result
	Stations    prometheus.Gauge
	Selections  *prometheus.CounterVec // style, fallback
	Extractions prometheus.Summary
}

// NewSet registers the service metrics on a fresh registry
func NewSet() *Set {
	s := &Set{
		Registry: NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqiviz_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Latency: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name: "aqiviz_http_request_duration_seconds",
			Help: "HTTP request latency by route.",
		}, []string{"route"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqiviz_provider_fetches_total",
			Help: "Station directory fetches by outcome.",
		}, []string{"result"}),
		Stations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aqiviz_directory_stations",
			Help: "Stations in the most recently fetched directory.",
		}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqiviz_style_selections_total",
			Help: "Visualization styles chosen, split by random fallback.",
		}, []string{"style", "fallback"}),
		Extractions: prometheus.NewSummary(prometheus.SummaryOpts{
			Name:       "aqiviz_extraction_duration_seconds",
			Help:       "Image feature extraction time.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}
	s.Registry.MustRegister(s.Requests, s.Latency, s.Fetches, s.Stations, s.Selections, s.Extractions)
	return s
}
