package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/viz"
)

const multipartMemory = 8 << 20

// upload is a validated image submission
type upload struct {
	aqi      int
	features models.Fingerprint
	decision viz.Decision
}

// visualization returns POST /api/visualization. With ?detail=true the
// response also carries the fingerprint, the per-style scores and whether
// the choice was random.
func (h *Handler) visualization(w http.ResponseWriter, r *http.Request) {
	up, err := h.analyzeUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := VisualizationResponse{
		Status:        statusSuccess,
		Style:         up.decision.Style,
		StyleName:     viz.DisplayName(up.decision.Style),
		Template:      viz.Template(up.decision.Style),
		DominantColor: up.features.Dominant(),
		AQI:           up.aqi,
	}
	if detail, _ := strconv.ParseBool(r.URL.Query().Get("detail")); detail {
		resp.Features = &up.features
		resp.Scores = up.decision.Scores
		resp.Fallback = &up.decision.Fallback
	}
	jsonResp(w, http.StatusOK, resp)
}

// appInventor returns POST /app-inventor: the same choice in a flat shape
func (h *Handler) appInventor(w http.ResponseWriter, r *http.Request) {
	up, err := h.analyzeUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	jsonResp(w, http.StatusOK, AppInventorResponse{
		Status:        statusSuccess,
		Visualization: up.decision.Style,
		DominantColor: up.features.Dominant(),
	})
}

// analyzeUpload reads the multipart image and aqi fields, fingerprints the
// image and picks a style
func (h *Handler) analyzeUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return upload{}, errTooLarge
		}
		return upload{}, invalidInput("expected a multipart form with an image field")
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart files", "error", err)
		}
	}()

	file, _, err := r.FormFile("image")
	if err != nil {
		return upload{}, invalidInput("image file is required")
	}
	defer file.Close()

	aqi, err := parseAQI(r.FormValue("aqi"))
	if err != nil {
		return upload{}, err
	}

	svc := h.services()
	start := time.Now()
	features, err := svc.Extractor.Extract(r.Context(), file)
	if err != nil {
		return upload{}, err
	}
	h.metrics.Extractions.Observe(since(start))

	decision := svc.Selector.Decide(features)
	h.metrics.Selections.WithLabelValues(string(decision.Style), strconv.FormatBool(decision.Fallback)).Inc()
	h.logger.Debug("style selected",
		"request_id", RequestID(r.Context()),
		"style", decision.Style,
		"fallback", decision.Fallback,
		"brightness", features.Brightness,
		"contrast", features.Contrast,
		"saturation", features.Saturation,
	)

	return upload{aqi: aqi, features: features, decision: decision}, nil
}

func parseAQI(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalidInput("aqi is required")
	}
	aqi, err := strconv.Atoi(raw)
	if err != nil || aqi < 0 {
		return 0, invalidInput("aqi must be a non-negative integer")
	}
	return aqi, nil
}
