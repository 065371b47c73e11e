package affinity

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Laplacian returns the normalized Laplacian L = I - D^{-1/2} A D^{-1/2} of
// the combined graph. Computed on first use and cached; the cached matrix is
// shared and must be treated as read-only.
func (g *Graph) Laplacian() *mat.SymDense {
	g.lapOnce.Do(func() {
		n := g.NumNodes()
		l := mat.NewSymDense(n, nil)

		invSqrt := make([]float64, n)
		for i := 0; i < n; i++ {
			if g.degrees[i] > 0 {
				invSqrt[i] = 1.0 / math.Sqrt(g.degrees[i])
			}
		}

		for i := 0; i < n; i++ {
			diag := 1.0
			// Self-loops contribute to A_ii, reducing the diagonal.
			if g.selfLoops[i] > 0 {
				diag -= 2 * g.selfLoops[i] * invSqrt[i] * invSqrt[i]
			}
			l.SetSym(i, i, diag)
			for _, nb := range g.adj[i] {
				if nb.Target > i {
					l.SetSym(i, nb.Target, -nb.Weight*invSqrt[i]*invSqrt[nb.Target])
				}
			}
		}
		g.lap = l
	})
	return g.lap
}
