package regime

import (
	"math"
	"math/rand"
)

// fitKMeans runs Lloyd's algorithm with k-means++ seeding and multiple
// restarts, returning the centers with the lowest inertia. All randomness
// flows through rng, so a fixed seed gives identical centers on every run.
func fitKMeans(points [][]float64, k, restarts, maxIter int, rng *rand.Rand) [][]float64 {
	bestInertia := math.Inf(1)
	var best [][]float64
	for r := 0; r < restarts; r++ {
		centers := seedCenters(points, k, rng)
		centers = lloyd(points, centers, maxIter)
		if inertia := totalInertia(points, centers); inertia < bestInertia {
			bestInertia = inertia
			best = centers
		}
	}
	return best
}

// seedCenters implements k-means++: the first center is uniform, each later
// one is drawn with probability proportional to squared distance from the
// nearest existing center.
func seedCenters(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[rng.Intn(len(points))]))

	dists := make([]float64, len(points))
	for len(centers) < k {
		total := 0.0
		for i, p := range points {
			dists[i] = sqDist(p, centers[nearest(p, centers)])
			total += dists[i]
		}
		if total == 0 {
			// All points coincide with a center; any pick works.
			centers = append(centers, clone(points[rng.Intn(len(points))]))
			continue
		}
		target := rng.Float64() * total
		acc := 0.0
		pick := len(points) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centers = append(centers, clone(points[pick]))
	}
	return centers
}

// lloyd alternates assignment and center updates until labels stop changing
// or maxIter is hit. An emptied cluster is re-seeded with the point farthest
// from its current center.
func lloyd(points [][]float64, centers [][]float64, maxIter int) [][]float64 {
	dim := len(points[0])
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			c := nearest(p, centers)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, len(centers))
		counts := make([]int, len(centers))
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := labels[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += v
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				centers[c] = clone(farthestPoint(points, labels, centers))
				continue
			}
			for d := range centers[c] {
				centers[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return centers
}

// Assign labels every point with its nearest center.
func assign(points [][]float64, centers [][]float64) []int {
	labels := make([]int, len(points))
	for i, p := range points {
		labels[i] = nearest(p, centers)
	}
	return labels
}

func nearest(p []float64, centers [][]float64) int {
	best := 0
	bestD := math.Inf(1)
	for c, center := range centers {
		if d := sqDist(p, center); d < bestD {
			bestD = d
			best = c
		}
	}
	return best
}

func farthestPoint(points [][]float64, labels []int, centers [][]float64) []float64 {
	best := points[0]
	bestD := -1.0
	for i, p := range points {
		if d := sqDist(p, centers[labels[i]]); d > bestD {
			bestD = d
			best = p
		}
	}
	return best
}

func totalInertia(points [][]float64, centers [][]float64) float64 {
	total := 0.0
	for _, p := range points {
		total += sqDist(p, centers[nearest(p, centers)])
	}
	return total
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
