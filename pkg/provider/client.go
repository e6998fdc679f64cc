// Package provider fetches the current monitoring-station directory from the
// air-quality open data API and validates it into stations.
package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kass/go-aqi-viz/pkg/models"
)

const (
	// DefaultBaseURL is the national AQI dataset endpoint
	DefaultBaseURL = "https://data.moenv.gov.tw/api/v2/aqx_p_432"

	// DefaultTimeout bounds a single outbound fetch
	DefaultTimeout = 10 * time.Second

	maxBodyBytes  = 16 << 20
	maxErrorBytes = 512
)

// Fetcher returns the station directory from one provider fetch
type Fetcher interface {
	FetchStations(ctx context.Context) (models.Directory, error)
}

// Options configures a Client
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Limit caps the number of records requested; zero leaves it to the provider
	Limit int
}

// Client provides access to the provider's station dataset
type Client struct {
	baseURL    string
	apiKey     string
	limit      int
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client with its own HTTP client bounded by opts.Timeout
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithHTTP(opts, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a client using a caller supplied HTTP client
func NewClientWithHTTP(opts Options, httpClient *http.Client) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		limit:      opts.Limit,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// FetchStations performs one GET against the provider and returns every station
// in the response. It never retries and never returns a partial list.
func (c *Client) FetchStations(ctx context.Context) (models.Directory, error) {
	requestURL, err := c.requestURL()
	if err != nil {
		return models.Directory{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return models.Directory{}, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Directory{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return models.Directory{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("%s: %s", http.StatusText(resp.StatusCode), snippet),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return models.Directory{}, &NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return models.Directory{}, &ProviderError{Detail: fmt.Sprintf("body exceeds %d bytes", maxBodyBytes)}
	}

	stations, err := decodeStations(body)
	if err != nil {
		return models.Directory{}, err
	}

	slog.Debug("provider: fetched stations",
		"count", len(stations),
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return models.Directory{Stations: stations, FetchedAt: c.now()}, nil
}

// requestURL builds the dataset URL; the API key travels in the query string
func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid provider base URL %q: %w", c.baseURL, err)
	}

	params := u.Query()
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	params.Set("format", "JSON")
	if c.limit > 0 {
		params.Set("limit", strconv.Itoa(c.limit))
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}
