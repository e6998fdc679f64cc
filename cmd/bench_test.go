package main

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/rtree"
)

var taiwan = queryArea{minLat: 21.9, maxLat: 25.3, minLon: 120.0, maxLon: 122.0}

func TestSyntheticDirectoryIsSeeded(t *testing.T) {
	a := syntheticDirectory(200, 3)
	b := syntheticDirectory(200, 3)

	require.Len(t, a.Stations, 200)
	assert.Equal(t, a.Stations, b.Stations)
	for _, st := range a.Stations {
		assert.True(t, st.HasReading())
		assert.GreaterOrEqual(t, st.Location.Lat, 21.9)
		assert.LessOrEqual(t, st.Location.Lon, 122.0)
	}
}

func TestRunQueries(t *testing.T) {
	calls := 0
	res := runQueries("fake", func(r *rand.Rand) (int, error) {
		calls++
		if calls%10 == 0 {
			return 0, errors.New("bad query")
		}
		return 2, nil
	}, 100, 1, 1)

	assert.Equal(t, "fake", res.QueryType)
	assert.Equal(t, 100, res.TotalQueries)
	assert.Equal(t, int64(10), res.Failed)
	assert.Equal(t, int64(180), res.TotalResults)
	assert.InDelta(t, 2.0, res.AvgResults, 1e-9)
	assert.LessOrEqual(t, res.MinDuration, res.P95Duration)
	assert.LessOrEqual(t, res.P95Duration, res.MaxDuration)
}

func TestBenchQueryTypes(t *testing.T) {
	dir := syntheticDirectory(500, 1)
	index := rtree.New(dir)

	for _, typ := range []string{"resolver", "nearest", "knn", "radius", "box"} {
		t.Run(typ, func(t *testing.T) {
			q, err := benchQuery(typ, dir, index, taiwan)
			require.NoError(t, err)
			res := runQueries(typ, q, 50, 4, 1)
			assert.Zero(t, res.Failed)
		})
	}

	_, err := benchQuery("spiral", dir, index, taiwan)
	assert.Error(t, err)
}

func TestIndexAgreesWithResolver(t *testing.T) {
	dir := syntheticDirectory(1000, 2)
	assert.Zero(t, agreement(dir, rtree.New(dir), taiwan, 300, 5))
}

func TestPlainPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.Title("Nearest station")
	p.Field("AQI", "%s", formatAQI(nil))
	p.Field("Color 1", "%s", p.Swatch(models.RGB{R: 255, G: 128}))

	out := buf.String()
	assert.Contains(t, out, "Nearest station\n===============")
	assert.Contains(t, out, "AQI:            no reading")
	assert.Contains(t, out, "#FF8000")
	assert.NotContains(t, out, "\x1b[")
}
