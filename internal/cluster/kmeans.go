package cluster

import (
	"context"
	"math"
)

// kmeans clusters the embedding rows into k groups. Initialization is
// farthest-first seeded from row 0, so repeated runs on the same embedding
// produce the same assignment without any randomness.
func (s *Session) kmeans(ctx context.Context, points [][]float64, k int) []int {
	n := len(points)
	if k >= n {
		assign := make([]int, n)
		for i := range assign {
			assign[i] = i
		}
		return assign
	}
	dim := len(points[0])

	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), points[0]...))
	for len(centers) < k {
		far, farDist := 0, -1.0
		for i, p := range points {
			d := math.MaxFloat64
			for _, c := range centers {
				if dd := sqDist(p, c); dd < d {
					d = dd
				}
			}
			if d > farDist {
				far, farDist = i, d
			}
		}
		centers = append(centers, append([]float64(nil), points[far]...))
	}

	assign := make([]int, n)
	iters := s.Opts.KMeansIters
	if iters <= 0 {
		iters = 50
	}

	for iter := 0; iter < iters; iter++ {
		if ctx.Err() != nil {
			break
		}

		changed := false
		for i, p := range points {
			best, bestDist := 0, math.MaxFloat64
			for c, center := range centers {
				if d := sqDist(p, center); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			counts[assign[i]]++
			for j, v := range p {
				sums[assign[i]][j] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue // empty cluster keeps its previous center
			}
			for j := 0; j < dim; j++ {
				centers[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	return assign
}

func sqDist(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
