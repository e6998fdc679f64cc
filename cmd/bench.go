package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/go-aqi-viz/pkg/geo"
	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/rtree"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the linear resolver against the R-Tree index",
	Long: `Run concurrent nearest-station lookups with the linear resolver and the R-Tree
index over a snapshot (or synthetic stations) and report latency and agreement.`,
	RunE: runBench,
}

var (
	benchSnapshot  string
	benchSynthetic int
	benchType      string
	benchQueries   int
	benchWorkers   int
	benchRadius    float64
	benchBoxSize   float64
	benchK         int
	benchSeed      int64

	// query area, Taiwan by default
	benchMinLat, benchMaxLat float64
	benchMinLon, benchMaxLon float64
)

func init() {
	f := benchCmd.Flags()
	f.StringVarP(&benchSnapshot, "snapshot", "s", "", "Snapshot file (default: synthetic stations)")
	f.IntVar(&benchSynthetic, "synthetic", 5000, "Synthetic station count when no snapshot is given")
	f.StringVarP(&benchType, "type", "t", "compare", "Query type: compare, resolver, nearest, knn, radius, box, mixed")
	f.IntVarP(&benchQueries, "queries", "n", 1000, "Number of queries to run")
	f.IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	f.Float64VarP(&benchRadius, "radius", "r", 25.0, "Radius in km (radius queries)")
	f.Float64Var(&benchBoxSize, "box-size", 0.5, "Box size in degrees (box queries)")
	f.IntVarP(&benchK, "neighbors", "k", 5, "Neighbors per query (knn queries)")
	f.Int64Var(&benchSeed, "seed", 1, "Random seed for stations and query points")
	f.Float64Var(&benchMinLat, "min-lat", 21.9, "Minimum latitude for random queries")
	f.Float64Var(&benchMaxLat, "max-lat", 25.3, "Maximum latitude for random queries")
	f.Float64Var(&benchMinLon, "min-lon", 120.0, "Minimum longitude for random queries")
	f.Float64Var(&benchMaxLon, "max-lon", 122.0, "Maximum longitude for random queries")
}

// BenchmarkResult summarises one run of a query type
type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	Failed        int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	P95Duration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

// queryArea bounds the random query points
type queryArea struct {
	minLat, maxLat, minLon, maxLon float64
}

func (a queryArea) random(r *rand.Rand) models.Location {
	return models.Location{
		Lat: a.minLat + r.Float64()*(a.maxLat-a.minLat),
		Lon: a.minLon + r.Float64()*(a.maxLon-a.minLon),
	}
}

// queryFunc runs one query and returns its result count
type queryFunc func(r *rand.Rand) (int, error)

func runBench(cmd *cobra.Command, _ []string) error {
	var (
		dir models.Directory
		err error
	)
	if benchSnapshot != "" {
		dir, err = rtree.LoadSnapshot(benchSnapshot)
		if err != nil {
			return err
		}
	} else {
		dir = syntheticDirectory(benchSynthetic, benchSeed)
	}
	if len(dir.Stations) == 0 {
		return geo.ErrEmptyDirectory
	}
	if benchWorkers <= 0 {
		benchWorkers = 1
	}

	area := queryArea{benchMinLat, benchMaxLat, benchMinLon, benchMaxLon}
	p := newPrinter(cmd.OutOrStdout())

	start := time.Now()
	index := rtree.New(dir)
	p.Note("indexed %d stations in %v", index.Count(), time.Since(start))

	types := []string{benchType}
	switch benchType {
	case "compare":
		types = []string{"resolver", "nearest"}
	case "mixed":
		types = []string{"resolver", "nearest", "knn", "radius", "box"}
	}

	for _, t := range types {
		q, err := benchQuery(t, dir, index, area)
		if err != nil {
			return err
		}
		printResult(p, runQueries(t, q, benchQueries, benchWorkers, benchSeed))
	}

	if benchType == "compare" || benchType == "mixed" {
		mismatches := agreement(dir, index, area, benchQueries, benchSeed)
		p.Title("Agreement")
		p.Field("Mismatches", "%d of %d", mismatches, benchQueries)
	}
	p.Note("workers %d, cpu cores %d", benchWorkers, runtime.NumCPU())
	return nil
}

func benchQuery(t string, dir models.Directory, index *rtree.StationIndex, area queryArea) (queryFunc, error) {
	switch t {
	case "resolver":
		return func(r *rand.Rand) (int, error) {
			_, err := geo.ResolveNearest(area.random(r), dir.Stations)
			return 1, err
		}, nil
	case "nearest":
		return func(r *rand.Rand) (int, error) {
			hits, err := index.NearestNeighbors(area.random(r), 1)
			return len(hits), err
		}, nil
	case "knn":
		return func(r *rand.Rand) (int, error) {
			hits, err := index.NearestNeighbors(area.random(r), benchK)
			return len(hits), err
		}, nil
	case "radius":
		return func(r *rand.Rand) (int, error) {
			hits, err := index.QueryRadius(area.random(r), benchRadius)
			return len(hits), err
		}, nil
	case "box":
		return func(r *rand.Rand) (int, error) {
			bl := area.random(r)
			hits, err := index.QueryBox(models.BoundingBox{
				BottomLeft: bl,
				TopRight:   models.Location{Lat: bl.Lat + benchBoxSize, Lon: bl.Lon + benchBoxSize},
			})
			return len(hits), err
		}, nil
	}
	return nil, fmt.Errorf("unknown query type: %s", t)
}

// runQueries feeds numQueries jobs to a pool of workers and collects latencies
func runQueries(name string, q queryFunc, numQueries, workers int, seed int64) BenchmarkResult {
	var (
		totalResults int64
		failed       int64
		mu           sync.Mutex
	)
	durations := make([]time.Duration, 0, numQueries)

	startTime := time.Now()

	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(w)))
			local := make([]time.Duration, 0, numQueries/workers+1)

			for range queryCh {
				queryStart := time.Now()
				n, err := q(r)
				d := time.Since(queryStart)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&totalResults, int64(n))
				local = append(local, d)
			}

			mu.Lock()
			durations = append(durations, local...)
			mu.Unlock()
		}(w)
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	res := BenchmarkResult{
		QueryType:     name,
		TotalQueries:  numQueries,
		Failed:        failed,
		TotalDuration: totalDuration,
		TotalResults:  totalResults,
	}
	if totalDuration > 0 {
		res.QueriesPerSec = float64(numQueries) / totalDuration.Seconds()
	}
	if len(durations) == 0 {
		return res
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	res.AvgDuration = sum / time.Duration(len(durations))
	res.MinDuration = durations[0]
	res.MaxDuration = durations[len(durations)-1]
	res.P95Duration = durations[(len(durations)*95)/100]
	res.AvgResults = float64(totalResults) / float64(len(durations))
	return res
}

// agreement counts query points where the index and the linear resolver
// disagree on the nearest distance
func agreement(dir models.Directory, index *rtree.StationIndex, area queryArea, n int, seed int64) int {
	r := rand.New(rand.NewSource(seed))
	mismatches := 0
	for i := 0; i < n; i++ {
		loc := area.random(r)
		want, err := geo.ResolveNearest(loc, dir.Stations)
		if err != nil {
			mismatches++
			continue
		}
		hits, err := index.NearestNeighbors(loc, 1)
		if err != nil || len(hits) == 0 || hits[0].DistanceKm-want.DistanceKm > 1e-9 {
			mismatches++
		}
	}
	return mismatches
}

func printResult(p *printer, res BenchmarkResult) {
	p.Title("Benchmark: " + res.QueryType)
	p.Field("Queries", "%d (%d failed)", res.TotalQueries, res.Failed)
	p.Field("Total", "%v", res.TotalDuration)
	p.Field("Queries/sec", "%.2f", res.QueriesPerSec)
	p.Field("Average", "%v", res.AvgDuration)
	p.Field("p95", "%v", res.P95Duration)
	p.Field("Min / Max", "%v / %v", res.MinDuration, res.MaxDuration)
	p.Field("Avg results", "%.2f", res.AvgResults)
}

// syntheticDirectory scatters n stations over Taiwan with a denser cluster
// around the Taipei basin
func syntheticDirectory(n int, seed int64) models.Directory {
	r := rand.New(rand.NewSource(seed))
	stations := make([]models.Station, n)
	for i := range stations {
		var lat, lon float64
		if r.Intn(3) == 0 {
			lat = 24.95 + r.Float64()*0.2
			lon = 121.4 + r.Float64()*0.25
		} else {
			lat = 21.9 + r.Float64()*3.4
			lon = 120.0 + r.Float64()*2.0
		}
		aqi := r.Intn(200)
		stations[i] = models.Station{
			Name:     fmt.Sprintf("station_%d", i),
			Location: models.Location{Lat: lat, Lon: lon},
			AQI:      &aqi,
		}
	}
	return models.Directory{Stations: stations, FetchedAt: time.Now()}
}
