package imaging

import (
	"math"
	"math/rand"
	"sort"
)

// vec3 is a point in RGB space
type vec3 [3]float64

func dist2(a, b vec3) float64 {
	d0 := a[0] - b[0]
	d1 := a[1] - b[1]
	d2 := a[2] - b[2]
	return d0*d0 + d1*d1 + d2*d2
}

// cluster is one k-means partition: its centroid and member count
type cluster struct {
	centroid vec3
	size     int
}

// kmeans partitions points into k clusters with k-means++ seeding followed by
// Lloyd iterations. It stops when no centroid moves more than tol or after
// maxIter rounds. Clusters are returned largest first.
func kmeans(points []vec3, k, maxIter int, tol float64, r *rand.Rand) []cluster {
	if len(points) == 0 || k <= 0 {
		return nil
	}
	if k > len(points) {
		k = len(points)
	}

	centroids := seedPlusPlus(points, k, r)
	assign := make([]int, len(points))
	sums := make([]vec3, k)
	counts := make([]int, k)

	for iter := 0; iter < maxIter; iter++ {
		for i := range sums {
			sums[i] = vec3{}
			counts[i] = 0
		}

		for i, p := range points {
			best := nearestCentroid(p, centroids)
			assign[i] = best
			sums[best][0] += p[0]
			sums[best][1] += p[1]
			sums[best][2] += p[2]
			counts[best]++
		}

		shift := 0.0
		for c := range centroids {
			var next vec3
			if counts[c] == 0 {
				// Re-seed an empty cluster on the point worst served by its centroid
				next = points[farthestPoint(points, assign, centroids)]
			} else {
				n := float64(counts[c])
				next = vec3{sums[c][0] / n, sums[c][1] / n, sums[c][2] / n}
			}
			shift = math.Max(shift, dist2(next, centroids[c]))
			centroids[c] = next
		}

		if shift <= tol*tol {
			break
		}
	}

	// Final assignment so sizes match the returned centroids
	for i := range counts {
		counts[i] = 0
	}
	for _, p := range points {
		counts[nearestCentroid(p, centroids)]++
	}

	out := make([]cluster, k)
	for c := range centroids {
		out[c] = cluster{centroid: centroids[c], size: counts[c]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].size > out[j].size })
	return out
}

// seedPlusPlus picks k initial centroids, each new one drawn with probability
// proportional to its squared distance from the closest existing centroid
func seedPlusPlus(points []vec3, k int, r *rand.Rand) []vec3 {
	centroids := make([]vec3, 0, k)
	centroids = append(centroids, points[r.Intn(len(points))])

	d := make([]float64, len(points))
	for i, p := range points {
		d[i] = dist2(p, centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for _, v := range d {
			total += v
		}

		next := 0
		if total > 0 {
			target := r.Float64() * total
			acc := 0.0
			for i, v := range d {
				if v == 0 {
					continue
				}
				next = i
				acc += v
				if acc >= target {
					break
				}
			}
		} else {
			next = r.Intn(len(points))
		}

		c := points[next]
		centroids = append(centroids, c)
		for i, p := range points {
			if v := dist2(p, c); v < d[i] {
				d[i] = v
			}
		}
	}
	return centroids
}

func nearestCentroid(p vec3, centroids []vec3) int {
	best, bestD := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := dist2(p, centroid); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func farthestPoint(points []vec3, assign []int, centroids []vec3) int {
	far, farD := 0, -1.0
	for i, p := range points {
		if d := dist2(p, centroids[assign[i]]); d > farD {
			far, farD = i, d
		}
	}
	return far
}
