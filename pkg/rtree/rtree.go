// Package rtree indexes one station directory snapshot in partitioned R-Trees
// so that box, radius and k-nearest queries avoid a full scan
package rtree

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-aqi-viz/pkg/geo"
	"github.com/kass/go-aqi-viz/pkg/models"
)

const (
	tolerance   = 0.0001
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// spatialStation wraps a station to implement rtreego.Spatial
type spatialStation struct {
	idx  int
	st   *models.Station
	rect *rtreego.Rect
}

func (s *spatialStation) Bounds() *rtreego.Rect {
	return s.rect
}

// Hit is a station returned by a query with its distance from the query center.
// Index is the station's position in the indexed directory.
type Hit struct {
	Station    models.Station `json:"station"`
	Index      int            `json:"-"`
	DistanceKm float64        `json:"distance_km"`
}

// StationIndex is a read-only R-Tree index over a single directory snapshot.
// It is safe for concurrent queries once built.
type StationIndex struct {
	partitions      []*rtreego.Rtree
	partitionBounds []models.BoundingBox
	stations        []models.Station
	fetchedAt       time.Time
	mu              sync.RWMutex
}

// New builds an index over dir using one longitude band per CPU
func New(dir models.Directory) *StationIndex {
	return NewWithPartitions(dir, runtime.NumCPU())
}

// NewWithPartitions builds an index with the given number of longitude bands
func NewWithPartitions(dir models.Directory, numPartitions int) *StationIndex {
	if numPartitions <= 0 {
		numPartitions = runtime.NumCPU()
	}

	partitions := make([]*rtreego.Rtree, numPartitions)
	partitionBounds := make([]models.BoundingBox, numPartitions)

	lonRange := 360.0 / float64(numPartitions)
	for i := 0; i < numPartitions; i++ {
		partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)

		minLon := -180.0 + float64(i)*lonRange
		maxLon := minLon + lonRange
		if i == numPartitions-1 {
			maxLon = 180.0
		}

		partitionBounds[i] = models.BoundingBox{
			BottomLeft: models.Location{Lat: -90, Lon: minLon},
			TopRight:   models.Location{Lat: 90, Lon: maxLon},
		}
	}

	idx := &StationIndex{
		partitions:      partitions,
		partitionBounds: partitionBounds,
		stations:        append([]models.Station(nil), dir.Stations...),
		fetchedAt:       dir.FetchedAt,
	}
	idx.build()
	return idx
}

// build distributes stations to partitions and inserts them in parallel
func (g *StationIndex) build() {
	numPartitions := len(g.partitions)
	grouped := make([][]*spatialStation, numPartitions)

	lonRange := 360.0 / float64(numPartitions)
	for i := range g.stations {
		st := &g.stations[i]
		p := rtreego.Point{st.Location.Lat, st.Location.Lon}
		item := &spatialStation{idx: i, st: st, rect: p.ToRect(tolerance)}

		partitionIdx := int((st.Location.Lon + 180.0) / lonRange)
		if partitionIdx >= numPartitions {
			partitionIdx = numPartitions - 1
		}
		if partitionIdx < 0 {
			partitionIdx = 0
		}
		grouped[partitionIdx] = append(grouped[partitionIdx], item)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var wg sync.WaitGroup
	for i, items := range grouped {
		if len(items) == 0 {
			continue
		}
		wg.Add(1)
		go func(tree *rtreego.Rtree, items []*spatialStation) {
			defer wg.Done()
			for _, item := range items {
				tree.Insert(item)
			}
		}(g.partitions[i], items)
	}
	wg.Wait()
}

// Count returns the number of indexed stations
func (g *StationIndex) Count() int {
	return len(g.stations)
}

// FetchedAt returns when the indexed snapshot was fetched
func (g *StationIndex) FetchedAt() time.Time {
	return g.fetchedAt
}

// Directory returns the snapshot the index was built from
func (g *StationIndex) Directory() models.Directory {
	return models.Directory{
		Stations:  append([]models.Station(nil), g.stations...),
		FetchedAt: g.fetchedAt,
	}
}

// QueryBox returns all stations inside box, in directory order
func (g *StationIndex) QueryBox(box models.BoundingBox) ([]Hit, error) {
	bounds, err := rtreego.NewRect(
		rtreego.Point{box.BottomLeft.Lat, box.BottomLeft.Lon},
		[]float64{box.TopRight.Lat - box.BottomLeft.Lat, box.TopRight.Lon - box.BottomLeft.Lon},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}

	center := models.Location{
		Lat: (box.BottomLeft.Lat + box.TopRight.Lat) / 2,
		Lon: (box.BottomLeft.Lon + box.TopRight.Lon) / 2,
	}
	hits := g.search(box, bounds, center, func(loc models.Location, _ float64) bool {
		return loc.Lat >= box.BottomLeft.Lat && loc.Lat <= box.TopRight.Lat &&
			loc.Lon >= box.BottomLeft.Lon && loc.Lon <= box.TopRight.Lon
	})

	sort.Slice(hits, func(i, j int) bool { return hits[i].Index < hits[j].Index })
	return hits, nil
}

// QueryRadius returns all stations within radiusKm of center, nearest first.
// Equal distances keep directory order.
func (g *StationIndex) QueryRadius(center models.Location, radiusKm float64) ([]Hit, error) {
	if err := geo.ValidateLocation(center); err != nil {
		return nil, err
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, fmt.Errorf("invalid radius %v: must be a positive number of km", radiusKm)
	}

	hits, err := g.searchCap(center, radiusKm)
	if err != nil {
		return nil, err
	}
	sortHits(hits)
	return hits, nil
}

// searchCap returns every station within radiusKm of center. The spherical cap
// is covered by latitude/longitude boxes; longitude ranges crossing ±180° are
// split in two, and a cap that reaches a pole spans every longitude. The boxes
// only pre-filter; haversine decides membership.
func (g *StationIndex) searchCap(center models.Location, radiusKm float64) ([]Hit, error) {
	ang := radiusKm / earthRadius * 1.01 // radians, padded for rounding
	latDeg := ang*180/math.Pi + tolerance

	lonDeg := 180.0
	if ang < math.Pi/2 {
		if s := math.Sin(ang) / math.Cos(center.Lat*math.Pi/180); s < 1 {
			lonDeg = math.Asin(s)*180/math.Pi + tolerance
		}
	}
	minLat := math.Max(center.Lat-latDeg, -90)
	maxLat := math.Min(center.Lat+latDeg, 90)
	if minLat <= -90 || maxLat >= 90 {
		lonDeg = 180
	}

	seen := make(map[int]struct{})
	var hits []Hit
	for _, lon := range lonRanges(center.Lon, lonDeg) {
		box := models.BoundingBox{
			BottomLeft: models.Location{Lat: minLat, Lon: lon[0]},
			TopRight:   models.Location{Lat: maxLat, Lon: lon[1]},
		}
		bounds, err := rtreego.NewRect(
			rtreego.Point{minLat, lon[0]},
			[]float64{maxLat - minLat, lon[1] - lon[0]},
		)
		if err != nil {
			return nil, fmt.Errorf("invalid radius search: %w", err)
		}
		found := g.search(box, bounds, center, func(_ models.Location, dist float64) bool {
			return dist <= radiusKm
		})
		for _, h := range found {
			if _, dup := seen[h.Index]; dup {
				continue
			}
			seen[h.Index] = struct{}{}
			hits = append(hits, h)
		}
	}
	return hits, nil
}

// lonRanges covers [lon-span, lon+span] with ranges inside [-180, 180],
// wrapping whatever falls past the antimeridian
func lonRanges(lon, span float64) [][2]float64 {
	lo, hi := lon-span, lon+span
	switch {
	case span >= 180:
		return [][2]float64{{-180, 180}}
	case lo < -180:
		return [][2]float64{{-180, hi}, {lo + 360, 180}}
	case hi > 180:
		return [][2]float64{{lo, 180}, {-180, hi - 360}}
	default:
		return [][2]float64{{lo, hi}}
	}
}

// NearestNeighbors returns up to n stations closest to center by great-circle
// distance, nearest first. Planar R-Tree neighbours only seed a search radius;
// the final set comes from an exact radius query, so the result matches a full
// haversine scan.
func (g *StationIndex) NearestNeighbors(center models.Location, n int) ([]Hit, error) {
	if err := geo.ValidateLocation(center); err != nil {
		return nil, err
	}
	if n <= 0 || len(g.stations) == 0 {
		return nil, nil
	}

	candidates := g.planarCandidates(center, n)
	if len(candidates) < n {
		// Every partition returned all it had
		sortHits(candidates)
		return candidates, nil
	}

	sortHits(candidates)
	radius := candidates[n-1].DistanceKm
	if radius <= 0 {
		radius = 1e-9
	}

	hits, err := g.QueryRadius(center, radius)
	if err != nil {
		return nil, err
	}
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// planarCandidates asks every partition for its 2n nearest items in degree space
func (g *StationIndex) planarCandidates(center models.Location, n int) []Hit {
	g.mu.RLock()
	defer g.mu.RUnlock()

	resultsChan := make(chan []Hit, len(g.partitions))
	for _, tree := range g.partitions {
		go func(tree *rtreego.Rtree) {
			queryPoint := rtreego.Point{center.Lat, center.Lon}
			// Get more candidates than needed from each partition
			results := tree.NearestNeighbors(n*2, queryPoint)

			hits := make([]Hit, 0, len(results))
			for _, result := range results {
				item, ok := result.(*spatialStation)
				if !ok || item == nil {
					continue
				}
				hits = append(hits, Hit{
					Station:    *item.st,
					Index:      item.idx,
					DistanceKm: geo.Haversine(center, item.st.Location),
				})
			}
			resultsChan <- hits
		}(tree)
	}

	var all []Hit
	for range g.partitions {
		all = append(all, <-resultsChan...)
	}
	return all
}

// search runs bounds against every partition overlapping box in parallel and
// keeps the items accepted by keep
func (g *StationIndex) search(box models.BoundingBox, bounds *rtreego.Rect, center models.Location, keep func(models.Location, float64) bool) []Hit {
	g.mu.RLock()
	defer g.mu.RUnlock()

	relevant := g.relevantPartitions(box)
	resultsChan := make(chan []Hit, len(relevant))

	for _, partitionIdx := range relevant {
		go func(tree *rtreego.Rtree) {
			results := tree.SearchIntersect(bounds)

			hits := make([]Hit, 0, len(results))
			for _, result := range results {
				item, ok := result.(*spatialStation)
				if !ok || item == nil {
					continue
				}
				dist := geo.Haversine(center, item.st.Location)
				if keep(item.st.Location, dist) {
					hits = append(hits, Hit{Station: *item.st, Index: item.idx, DistanceKm: dist})
				}
			}
			resultsChan <- hits
		}(g.partitions[partitionIdx])
	}

	var all []Hit
	for range relevant {
		all = append(all, <-resultsChan...)
	}
	return all
}

// relevantPartitions returns the indices of partitions whose longitude band
// intersects box
func (g *StationIndex) relevantPartitions(box models.BoundingBox) []int {
	var relevant []int
	for i, bounds := range g.partitionBounds {
		if box.BottomLeft.Lon <= bounds.TopRight.Lon &&
			box.TopRight.Lon >= bounds.BottomLeft.Lon {
			relevant = append(relevant, i)
		}
	}
	return relevant
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKm != hits[j].DistanceKm {
			return hits[i].DistanceKm < hits[j].DistanceKm
		}
		return hits[i].Index < hits[j].Index
	})
}
