package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kass/go-aqi-viz/pkg/geo"
	"github.com/kass/go-aqi-viz/pkg/imaging"
	"github.com/kass/go-aqi-viz/pkg/provider"
)

// Error kinds reported in the error envelope
const (
	kindInvalidCoordinate = "invalid_coordinate"
	kindInvalidInput      = "invalid_input"
	kindUnsupportedImage  = "unsupported_image"
	kindEmptyDirectory    = "empty_directory"
	kindProviderError     = "provider_error"
	kindNetworkError      = "network_error"
	kindUnavailable       = "unavailable"
	kindInternal          = "internal"
)

// inputError is a client mistake in query or form parameters
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func invalidInput(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

// errTooLarge marks an upload over the configured limit
var errTooLarge = errors.New("upload too large")

// classify maps an error to its HTTP status, kind and client-facing summary
func classify(err error) (int, string, string) {
	var (
		inErr   *inputError
		provErr *provider.ProviderError
		netErr  *provider.NetworkError
		maxErr  *http.MaxBytesError
	)

	switch {
	case errors.Is(err, geo.ErrInvalidCoordinate):
		return http.StatusBadRequest, kindInvalidCoordinate, err.Error()
	case errors.As(err, &inErr):
		return http.StatusBadRequest, kindInvalidInput, inErr.msg
	case errors.Is(err, errTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, kindInvalidInput, "upload exceeds the size limit"
	case errors.Is(err, imaging.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, kindInvalidInput, "image dimensions exceed the pixel limit"
	case errors.Is(err, imaging.ErrUnsupportedImage):
		return http.StatusBadRequest, kindUnsupportedImage, "image could not be decoded"
	case errors.Is(err, geo.ErrEmptyDirectory):
		return http.StatusBadGateway, kindEmptyDirectory, "no monitoring stations available"
	case errors.As(err, &provErr):
		if provErr.StatusCode != 0 {
			return http.StatusBadGateway, kindProviderError,
				fmt.Sprintf("air quality provider responded with status %d", provErr.StatusCode)
		}
		return http.StatusBadGateway, kindProviderError, "air quality provider returned an invalid response"
	case errors.As(err, &netErr):
		return http.StatusGatewayTimeout, kindNetworkError, "air quality provider is unreachable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, kindUnavailable, "request cancelled before it could be served"
	default:
		return http.StatusInternalServerError, kindInternal, "internal error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, kind, msg := classify(err)

	level := slog.LevelInfo
	if code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"request_id", RequestID(r.Context()),
		"kind", kind,
		"error", err,
	)

	jsonErr(w, code, kind, msg)
}

func jsonResp(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func jsonErr(w http.ResponseWriter, status int, kind, msg string) {
	jsonResp(w, status, ErrorResponse{Status: statusError, Error: kind, Message: msg})
}
