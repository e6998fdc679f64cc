package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, b []byte) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(bytes.NewReader(b))
	require.NoError(t, err)
	return mfs
}

func scrape(t *testing.T, r *Registry) map[string]*dto.MetricFamily {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return parse(t, rec.Body.Bytes())
}

func TestSetCountersAndGauge(t *testing.T) {
	set := NewSet()
	set.Requests.WithLabelValues("GET /api/aqi", "200").Inc()
	set.Requests.WithLabelValues("GET /api/aqi", "200").Inc()
	set.Requests.WithLabelValues("GET /api/aqi", "502").Add(3)
	set.Stations.Set(84)
	set.Stations.Sub(4)

	mfs := scrape(t, set.Registry)

	req := mfs["aqiviz_http_requests_total"]
	require.NotNil(t, req)
	assert.Equal(t, dto.MetricType_COUNTER, req.GetType())
	require.Len(t, req.GetMetric(), 2)
	assert.Equal(t, "200", req.GetMetric()[0].GetLabel()[0].GetValue())
	assert.Equal(t, 2.0, req.GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 3.0, req.GetMetric()[1].GetCounter().GetValue())

	assert.Equal(t, 80.0, mfs["aqiviz_directory_stations"].GetMetric()[0].GetGauge().GetValue())
}

func TestSetSummaries(t *testing.T) {
	set := NewSet()
	set.Latency.WithLabelValues("GET /healthz").Observe(0.5)
	set.Latency.WithLabelValues("GET /healthz").Observe(1.5)
	set.Extractions.Observe(0.25)

	mfs := scrape(t, set.Registry)

	lat := mfs["aqiviz_http_request_duration_seconds"]
	require.NotNil(t, lat)
	assert.Equal(t, dto.MetricType_SUMMARY, lat.GetType())
	sum := lat.GetMetric()[0].GetSummary()
	assert.Equal(t, uint64(2), sum.GetSampleCount())
	assert.Equal(t, 2.0, sum.GetSampleSum())

	ext := mfs["aqiviz_extraction_duration_seconds"].GetMetric()[0].GetSummary()
	assert.Equal(t, uint64(1), ext.GetSampleCount())
	assert.NotEmpty(t, ext.GetQuantile())
}

func TestUnusedVectorsAreOmitted(t *testing.T) {
	set := NewSet()

	var buf bytes.Buffer
	require.NoError(t, set.Registry.WriteText(&buf))
	mfs := parse(t, buf.Bytes())

	assert.NotContains(t, mfs, "aqiviz_http_requests_total")
	assert.NotContains(t, mfs, "aqiviz_style_selections_total")
	assert.Contains(t, mfs, "aqiviz_directory_stations")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	set := NewSet()
	dup := prometheus.NewGauge(prometheus.GaugeOpts{Name: "aqiviz_directory_stations", Help: "Again."})
	assert.Panics(t, func() { set.Registry.MustRegister(dup) })
	assert.Panics(t, func() { set.Selections.WithLabelValues("airflow") })
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewSet(), NewSet()
	a.Stations.Set(10)

	assert.Equal(t, 10.0, scrape(t, a.Registry)["aqiviz_directory_stations"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 0.0, scrape(t, b.Registry)["aqiviz_directory_stations"].GetMetric()[0].GetGauge().GetValue())
}

func TestConcurrentUpdates(t *testing.T) {
	set := NewSet()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				set.Selections.WithLabelValues("airflow", "false").Inc()
			}
		}()
	}
	wg.Wait()

	mf := scrape(t, set.Registry)["aqiviz_style_selections_total"]
	require.NotNil(t, mf)
	assert.Equal(t, 800.0, mf.GetMetric()[0].GetCounter().GetValue())
}

func TestHandlerContentType(t *testing.T) {
	set := NewSet()
	set.Requests.WithLabelValues("GET /healthz", "200").Inc()

	rec := httptest.NewRecorder()
	set.Registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), `aqiviz_http_requests_total{code="200",route="GET /healthz"} 1`)
}
