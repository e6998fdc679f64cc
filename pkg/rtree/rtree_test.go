package rtree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/kass/go-aqi-viz/pkg/geo"
	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aqi(v int) *int { return &v }

func station(name string, lat, lon float64) models.Station {
	return models.Station{Name: name, Location: models.Location{Lat: lat, Lon: lon}, AQI: aqi(40)}
}

func northernTaiwan() models.Directory {
	return models.Directory{
		Stations: []models.Station{
			station("Keelung", 25.129167, 121.760056),
			station("Zhongshan", 25.062361, 121.526528),
			station("Banqiao", 25.012972, 121.458667),
			station("Taoyuan", 24.994789, 121.304077),
			station("Hsinchu", 24.805619, 120.972075),
			station("Taichung", 24.151958, 120.641092),
		},
		FetchedAt: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
	}
}

func TestNewIndex(t *testing.T) {
	index := New(northernTaiwan())
	assert.NotNil(t, index)
	assert.Equal(t, 6, index.Count())

	empty := New(models.Directory{})
	assert.Equal(t, 0, empty.Count())
}

func TestQueryBox(t *testing.T) {
	index := NewWithPartitions(northernTaiwan(), 4)

	box := models.BoundingBox{
		BottomLeft: models.Location{Lat: 24.9, Lon: 121.2},
		TopRight:   models.Location{Lat: 25.2, Lon: 121.8},
	}

	results, err := index.QueryBox(box)
	require.NoError(t, err)
	require.Len(t, results, 4)

	names := make([]string, len(results))
	for i, h := range results {
		names[i] = h.Station.Name
	}
	assert.Equal(t, []string{"Keelung", "Zhongshan", "Banqiao", "Taoyuan"}, names)
}

func TestQueryRadius(t *testing.T) {
	index := New(northernTaiwan())
	center := models.Location{Lat: 25.0330, Lon: 121.5654} // Taipei 101

	testCases := []struct {
		name     string
		radius   float64
		expected []string
	}{
		{"6km radius", 6, []string{"Zhongshan"}},
		{"15km radius", 15, []string{"Zhongshan", "Banqiao"}},
		{"30km radius", 30, []string{"Zhongshan", "Banqiao", "Keelung", "Taoyuan"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := index.QueryRadius(center, tc.radius)
			require.NoError(t, err)
			require.Len(t, results, len(tc.expected))
			for i, name := range tc.expected {
				assert.Equal(t, name, results[i].Station.Name)
			}
			for i := 1; i < len(results); i++ {
				assert.LessOrEqual(t, results[i-1].DistanceKm, results[i].DistanceKm)
			}
		})
	}
}

func TestQueryRadiusAcrossAntimeridian(t *testing.T) {
	dir := models.Directory{Stations: []models.Station{
		station("east", 0, 179.95),
		station("west", 0, -179.95),
		station("far", 0, 170),
	}}

	testCases := []struct {
		name       string
		partitions int
		center     models.Location
		expected   []string
	}{
		{"east of the line", 1, models.Location{Lat: 0, Lon: 179.99}, []string{"east", "west"}},
		{"west of the line", 1, models.Location{Lat: 0, Lon: -179.99}, []string{"west", "east"}},
		{"two bands", 2, models.Location{Lat: 0, Lon: 179.99}, []string{"east", "west"}},
		{"on the line", 4, models.Location{Lat: 0, Lon: 180}, []string{"east", "west"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			index := NewWithPartitions(dir, tc.partitions)
			results, err := index.QueryRadius(tc.center, 50)
			require.NoError(t, err)

			names := make([]string, len(results))
			for i, h := range results {
				names[i] = h.Station.Name
			}
			assert.ElementsMatch(t, tc.expected, names)
			for i := 1; i < len(results); i++ {
				assert.LessOrEqual(t, results[i-1].DistanceKm, results[i].DistanceKm)
			}
		})
	}
}

func TestQueryRadiusNearPole(t *testing.T) {
	dir := models.Directory{Stations: []models.Station{
		station("greenwich side", 89.9, 0),
		station("date line side", 89.9, 180),
		station("south", 60, 0),
	}}
	index := NewWithPartitions(dir, 4)

	results, err := index.QueryRadius(models.Location{Lat: 89.95, Lon: 90}, 30)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ElementsMatch(t,
		[]string{"greenwich side", "date line side"},
		[]string{results[0].Station.Name, results[1].Station.Name},
	)
}

func TestQueryRadiusMatchesFullScan(t *testing.T) {
	dir := models.Directory{Stations: generateGlobalStations(3000)}
	r := rand.New(rand.NewSource(11))

	for _, partitions := range []int{1, 2, 5} {
		index := NewWithPartitions(dir, partitions)
		for i := 0; i < 60; i++ {
			center := randomGlobalLocation(r)
			radius := 10 + r.Float64()*2000

			want := 0
			for _, st := range dir.Stations {
				if geo.Haversine(center, st.Location) <= radius {
					want++
				}
			}

			got, err := index.QueryRadius(center, radius)
			require.NoError(t, err)
			assert.Len(t, got, want, "center %v radius %.1f partitions %d", center, radius, partitions)
		}
	}
}

func TestQueryRadiusRejectsBadInput(t *testing.T) {
	index := New(northernTaiwan())

	_, err := index.QueryRadius(models.Location{Lat: 95, Lon: 0}, 10)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	_, err = index.QueryRadius(models.Location{Lat: 25, Lon: 121}, 0)
	assert.Error(t, err)
}

func TestNearestNeighbors(t *testing.T) {
	index := New(northernTaiwan())
	center := models.Location{Lat: 25.062361, Lon: 121.526528}

	results, err := index.NearestNeighbors(center, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Zhongshan", results[0].Station.Name)
	assert.InDelta(t, 0, results[0].DistanceKm, 1e-6)
	assert.Equal(t, "Banqiao", results[1].Station.Name)
}

func TestNearestNeighborsAgreesWithResolver(t *testing.T) {
	dir := models.Directory{Stations: generateRandomStations(2000)}
	index := New(dir)

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		q := models.Location{Lat: 22 + r.Float64()*3.5, Lon: 120 + r.Float64()*2}

		want, err := geo.ResolveNearest(q, dir.Stations)
		require.NoError(t, err)

		got, err := index.NearestNeighbors(q, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, want.DistanceKm, got[0].DistanceKm, 1e-9)
	}
}

func TestNearestNeighborsAcrossAntimeridian(t *testing.T) {
	dir := models.Directory{Stations: []models.Station{
		station("east", 0, 179.9),
		station("west", 0, -179.999),
	}}
	index := NewWithPartitions(dir, 2)
	q := models.Location{Lat: 0, Lon: 179.999}

	want, err := geo.ResolveNearest(q, dir.Stations)
	require.NoError(t, err)
	require.Equal(t, "west", want.Station.Name)

	got, err := index.NearestNeighbors(q, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "west", got[0].Station.Name)
	assert.InDelta(t, want.DistanceKm, got[0].DistanceKm, 1e-9)
}

func TestNearestNeighborsAgreesWithResolverGlobally(t *testing.T) {
	dir := models.Directory{Stations: generateGlobalStations(2000)}
	r := rand.New(rand.NewSource(5))

	for _, partitions := range []int{1, 3, 8} {
		index := NewWithPartitions(dir, partitions)
		for i := 0; i < 100; i++ {
			q := randomGlobalLocation(r)

			want, err := geo.ResolveNearest(q, dir.Stations)
			require.NoError(t, err)

			got, err := index.NearestNeighbors(q, 1)
			require.NoError(t, err)
			require.Len(t, got, 1, "query %v partitions %d", q, partitions)
			assert.InDelta(t, want.DistanceKm, got[0].DistanceKm, 1e-9, "query %v partitions %d", q, partitions)
		}
	}
}

func TestPersistence(t *testing.T) {
	dir := northernTaiwan()
	dir.Stations[2].AQI = nil
	index1 := New(dir)

	tempFile := filepath.Join(t.TempDir(), "snapshot.gob")
	require.NoError(t, index1.SaveToFile(tempFile))

	index2, err := LoadFromFile(tempFile)
	require.NoError(t, err)
	assert.Equal(t, index1.Count(), index2.Count())

	loaded := index2.Directory()
	assert.True(t, loaded.FetchedAt.Equal(dir.FetchedAt))
	assert.Nil(t, loaded.Stations[2].AQI)
	require.NotNil(t, loaded.Stations[0].AQI)
	assert.Equal(t, 40, *loaded.Stations[0].AQI)
	for i := range dir.Stations {
		assert.Equal(t, dir.Stations[i].Name, loaded.Stations[i].Name)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestConcurrentQueries(t *testing.T) {
	index := New(models.Directory{Stations: generateRandomStations(5000)})

	done := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func(seed int64) {
			defer func() { done <- true }()
			r := rand.New(rand.NewSource(seed))
			center := models.Location{Lat: 22 + r.Float64()*3.5, Lon: 120 + r.Float64()*2}

			switch r.Intn(2) {
			case 0:
				_, err := index.QueryRadius(center, 20)
				assert.NoError(t, err)
			default:
				_, err := index.NearestNeighbors(center, 5)
				assert.NoError(t, err)
			}
		}(int64(i))
	}

	for i := 0; i < 100; i++ {
		<-done
	}
}

func generateRandomStations(n int) []models.Station {
	r := rand.New(rand.NewSource(42))
	stations := make([]models.Station, n)
	for i := 0; i < n; i++ {
		stations[i] = station(fmt.Sprintf("station_%d", i), 22+r.Float64()*3.5, 120+r.Float64()*2)
	}
	return stations
}

// generateGlobalStations spreads stations over the whole globe with extra
// density along the antimeridian and near both poles
func generateGlobalStations(n int) []models.Station {
	r := rand.New(rand.NewSource(7))
	stations := make([]models.Station, n)
	for i := 0; i < n; i++ {
		var lat, lon float64
		switch i % 4 {
		case 0:
			lat, lon = -90+r.Float64()*180, -180+r.Float64()*360
		case 1:
			lat = -60 + r.Float64()*120
			lon = 179 + r.Float64()*2
			if lon > 180 {
				lon -= 360
			}
		case 2:
			lat, lon = 85+r.Float64()*5, -180+r.Float64()*360
		default:
			lat, lon = -90+r.Float64()*5, -180+r.Float64()*360
		}
		stations[i] = station(fmt.Sprintf("global_%d", i), lat, lon)
	}
	return stations
}

func randomGlobalLocation(r *rand.Rand) models.Location {
	switch r.Intn(3) {
	case 0:
		lon := 179.5 + r.Float64()
		if lon > 180 {
			lon -= 360
		}
		return models.Location{Lat: -70 + r.Float64()*140, Lon: lon}
	case 1:
		return models.Location{Lat: 88 + r.Float64()*2, Lon: -180 + r.Float64()*360}
	default:
		return models.Location{Lat: -90 + r.Float64()*180, Lon: -180 + r.Float64()*360}
	}
}
