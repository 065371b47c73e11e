package cluster

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"ckc/internal/affinity"
)

// spectral runs normalized spectral clustering: eigendecompose the
// normalized Laplacian, estimate k from the eigengap when not given, and
// k-means the row-normalized embedding. When no usable eigengap exists or
// the eigensolver fails, the result falls back to Louvain.
func (s *Session) spectral(ctx context.Context, g *affinity.Graph) (*Result, error) {
	n := g.NumNodes()
	if n < 3 {
		// Nothing to cut; Louvain handles the trivial cases.
		return s.louvain(ctx, g, s.Opts.Gamma)
	}

	vals, vecs, ok := eigenSym(g.Laplacian())
	if !ok {
		s.Log.Warn("eigensolver failed to converge, falling back to louvain")
		res, err := s.louvain(ctx, g, s.Opts.Gamma)
		if err == nil {
			res.Degraded = true
		}
		return res, err
	}

	k := s.Opts.K
	if k <= 0 {
		k = s.estimateK(vals, n)
		if k < 2 {
			s.Log.Debug("no qualifying eigengap, falling back to louvain")
			return s.louvain(ctx, g, s.Opts.Gamma)
		}
	}
	if k > n {
		k = n
	}

	embedding := rowNormalize(vecs, n, k)
	assign := s.kmeans(ctx, embedding, k)

	res := &Result{Assign: assign}
	if ctx.Err() != nil {
		res.Cancelled = true
	}
	normalize(res)
	return res, nil
}

// eigenSym returns eigenvalues ascending with matching eigenvector columns.
func eigenSym(l *mat.SymDense) ([]float64, *mat.Dense, bool) {
	var eig mat.EigenSym
	if !eig.Factorize(l, true) {
		return nil, nil, false
	}
	n, _ := l.Dims()
	vals := make([]float64, n)
	eig.Values(vals)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// EigenSym returns ascending values already, but sort defensively via an
	// index permutation so the embedding stays aligned.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return vals[idx[a]] < vals[idx[b]] })

	sortedVals := make([]float64, n)
	sorted := mat.NewDense(n, n, nil)
	for col, src := range idx {
		sortedVals[col] = vals[src]
		for row := 0; row < n; row++ {
			sorted.Set(row, col, vecs.At(row, src))
		}
	}
	return sortedVals, sorted, true
}

// estimateK picks k from the eigengap: the smallest k >= 2 whose gap
// lambda_{k} - lambda_{k-1} is at least GapRatio times the median gap among
// the lowest MaxEigen eigenvalues. Returns 0 when no gap qualifies.
func (s *Session) estimateK(vals []float64, n int) int {
	limit := s.Opts.MaxEigen
	if limit <= 0 {
		limit = 20
	}
	if limit > n {
		limit = n
	}
	if limit < 3 {
		return 0
	}

	gaps := make([]float64, 0, limit-1)
	for i := 1; i < limit; i++ {
		gaps = append(gaps, vals[i]-vals[i-1])
	}

	sorted := make([]float64, len(gaps))
	copy(sorted, gaps)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	if median <= 0 {
		// Degenerate spectrum (all gaps zero); no split is justified.
		return 0
	}

	ratio := s.Opts.GapRatio
	if ratio <= 0 {
		ratio = 1.5
	}
	for k := 2; k < limit; k++ {
		// gap after the k-th eigenvalue separates k clusters.
		if gaps[k-1] >= ratio*median {
			return k
		}
	}
	return 0
}

// rowNormalize extracts the first k eigenvector columns and scales each row
// to unit length.
func rowNormalize(vecs *mat.Dense, n, k int) [][]float64 {
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		norm := 0.0
		for j := 0; j < k; j++ {
			row[j] = vecs.At(i, j)
			norm += row[j] * row[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := 0; j < k; j++ {
				row[j] /= norm
			}
		}
		out[i] = row
	}
	return out
}
