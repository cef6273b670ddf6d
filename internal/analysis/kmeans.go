package analysis

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	kmeansRestarts = 10
	kmeansMaxIter  = 300
	kmeansTol      = 1e-4
)

type Point [2]float64

type KMeansResult struct {
	Labels    []int
	Centroids []Point
	Inertia   float64
}

// KMeans partitions points into k clusters with k-means++ seeding and Lloyd
// iterations, keeping the best of several restarts by inertia. It holds no state
// between calls: identical points and seed give identical output.
func KMeans(points []Point, k int, seed uint64) (KMeansResult, error) {
	if k < 1 {
		return KMeansResult{}, fmt.Errorf("kmeans: k = %d", k)
	}
	if len(points) < k {
		return KMeansResult{}, fmt.Errorf("kmeans: %d points for %d clusters: %w", len(points), k, ErrInsufficientData)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	var best KMeansResult
	for run := 0; run < kmeansRestarts; run++ {
		res := lloyd(points, seedCentroids(points, k, rng))
		if run == 0 || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// seedCentroids picks k initial centroids with k-means++: each next centroid is
// drawn with probability proportional to its squared distance from the nearest
// centroid already chosen.
func seedCentroids(points []Point, k int, rng *rand.Rand) []Point {
	centroids := make([]Point, 0, k)
	centroids = append(centroids, points[rng.IntN(len(points))])

	d2 := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d2[i] = math.Inf(1)
			for _, c := range centroids {
				d2[i] = math.Min(d2[i], sqDist(p, c))
			}
			total += d2[i]
		}
		if total == 0 {
			centroids = append(centroids, points[rng.IntN(len(points))])
			continue
		}
		r := rng.Float64() * total
		next := len(points) - 1
		for i, d := range d2 {
			r -= d
			if r <= 0 {
				next = i
				break
			}
		}
		centroids = append(centroids, points[next])
	}
	return centroids
}

func lloyd(points []Point, centroids []Point) KMeansResult {
	k := len(centroids)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, p := range points {
			l := nearest(p, centroids)
			if l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		fillEmpty(points, labels, centroids)

		shift := 0.0
		next := meanByLabel(points, labels, k)
		for j := range centroids {
			shift = math.Max(shift, sqDist(centroids[j], next[j]))
		}
		centroids = next
		if !changed || shift < kmeansTol*kmeansTol {
			break
		}
	}

	// Final assignment against the final centroids.
	for i, p := range points {
		labels[i] = nearest(p, centroids)
	}
	fillEmpty(points, labels, centroids)
	centroids = meanByLabel(points, labels, k)

	inertia := 0.0
	for i, p := range points {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return KMeansResult{Labels: labels, Centroids: centroids, Inertia: inertia}
}

// fillEmpty gives every empty cluster the point furthest from its own centroid,
// taken from a cluster that can spare one.
func fillEmpty(points []Point, labels []int, centroids []Point) {
	k := len(centroids)
	for j := 0; j < k; j++ {
		sizes := make([]int, k)
		for _, l := range labels {
			sizes[l]++
		}
		if sizes[j] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if sizes[labels[i]] < 2 {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return
		}
		labels[far] = j
		centroids[j] = points[far]
	}
}

func meanByLabel(points []Point, labels []int, k int) []Point {
	sums := make([]Point, k)
	counts := make([]int, k)
	for i, p := range points {
		l := labels[i]
		sums[l][0] += p[0]
		sums[l][1] += p[1]
		counts[l]++
	}
	for j := range sums {
		if counts[j] > 0 {
			sums[j][0] /= float64(counts[j])
			sums[j][1] /= float64(counts[j])
		}
	}
	return sums
}

func nearest(p Point, centroids []Point) int {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centroids {
		if d := sqDist(p, c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func sqDist(a, b Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}
