package api

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-aqi-viz/internal/metrics"
	"github.com/kass/go-aqi-viz/pkg/imaging"
	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/provider"
	"github.com/kass/go-aqi-viz/pkg/rtree"
	"github.com/kass/go-aqi-viz/pkg/viz"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultNearbyLimit    = 10
	defaultRadiusKm       = 10.0
)

// Services are the components a request runs through. They can be replaced
// at runtime with Swap.
type Services struct {
	Fetcher   provider.Fetcher
	Extractor *imaging.Extractor
	Selector  *viz.Selector
}

// Options tune the handler
type Options struct {
	MaxUploadBytes int64
	NearbyLimit    int
	Logger         *slog.Logger
	Metrics        *metrics.Set
}

// Handler routes API requests
type Handler struct {
	svc     atomic.Pointer[Services]
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Set
	mux     *http.ServeMux
	root    http.Handler

	indexMu sync.Mutex
	index   *rtree.StationIndex
}

// New creates a Handler and registers all routes
func New(svc Services, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.NearbyLimit <= 0 {
		opts.NearbyLimit = defaultNearbyLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewSet()
	}

	h := &Handler{
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		mux:     http.NewServeMux(),
	}
	h.svc.Store(&svc)

	h.mux.HandleFunc("GET /api/aqi", h.nearestAQI)
	h.mux.HandleFunc("GET /api/stations", h.listStations)
	h.mux.HandleFunc("GET /api/stations/nearby", h.nearbyStations)
	h.mux.HandleFunc("POST /api/visualization", h.visualization)
	h.mux.HandleFunc("POST /app-inventor", h.appInventor)
	h.mux.HandleFunc("GET /api/styles", h.styles)
	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.Handle("GET /metrics", h.metrics.Registry.Handler())

	h.root = withRequestID(withCORS(h.withLogging(h.mux)))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// Swap replaces the services used by subsequent requests. Requests already
// in flight finish with the services they started with.
func (h *Handler) Swap(svc Services) {
	h.svc.Store(&svc)
}

func (h *Handler) services() *Services {
	return h.svc.Load()
}

// stationIndex returns an index over dir, reusing the last one when dir is the
// same snapshot. Building happens outside the lock so concurrent requests for
// different snapshots do not wait on each other.
func (h *Handler) stationIndex(dir models.Directory) *rtree.StationIndex {
	h.indexMu.Lock()
	cached := h.index
	h.indexMu.Unlock()

	if sameSnapshot(cached, dir) {
		return cached
	}

	idx := rtree.New(dir)
	h.indexMu.Lock()
	if h.index == nil || !h.index.FetchedAt().After(dir.FetchedAt) {
		h.index = idx
	}
	h.indexMu.Unlock()
	return idx
}

func sameSnapshot(idx *rtree.StationIndex, dir models.Directory) bool {
	return idx != nil && idx.FetchedAt().Equal(dir.FetchedAt) && idx.Count() == len(dir.Stations)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) styles(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, StylesResponse{
		Status: statusSuccess,
		Styles: h.services().Selector.Table().Catalogue(),
	})
}

func since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
