package graph

import (
	"fmt"
	"math"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestLineGraph(t *testing.T) {
	var (
		n = 8
		h = 0.25
		g = NewLineGraph(n, h, Dirichlet, DoNothing)
	)
	assert.Equal(t, n, g.NNodes)
	assert.Equal(t, n, g.NOwned)
	assert.Equal(t, n-2, g.NInternal)
	assert.Equal(t, 0, g.NExport)
	assert.True(t, near(float64(n-1)*h, g.Measure))

	// Each row starts with its diagonal
	for i := 0; i < n; i++ {
		assert.Equal(t, i, g.Col(i, 0))
	}
	// Row sums of c vanish (partition of unity)
	for i := 0; i < n; i++ {
		var sum float64
		for colIdx := 0; colIdx < g.RowLength(i); colIdx++ {
			sum += g.CijAt(i, colIdx)[0]
		}
		assert.True(t, near(0, sum))
	}
	// c is antisymmetric off the diagonal, m and beta symmetric
	for i := 0; i < n; i++ {
		for colIdx := 1; colIdx < g.RowLength(i); colIdx++ {
			assert.True(t, near(-g.CijAt(i, colIdx)[0], g.CjiAt(i, colIdx)[0]))
			e, et := g.Entry(i, colIdx), g.TransposedEntry(i, colIdx)
			assert.True(t, near(g.Mij[e], g.Mij[et]))
			assert.True(t, near(g.Betaij[e], g.Betaij[et]))
		}
	}
	// Lumped masses sum to the domain measure
	var mTot float64
	for i := 0; i < n; i++ {
		mTot += g.ML[i]
		assert.True(t, near(1, g.ML[i]*g.MLInv[i]))
	}
	assert.True(t, near(g.Measure, mTot))

	// Boundary map
	assert.Equal(t, 2, len(g.Boundary))
	assert.True(t, g.IsBoundary(0))
	assert.True(t, g.IsBoundary(n-1))
	assert.False(t, g.IsBoundary(n/2))
	assert.Equal(t, Dirichlet, g.Boundary[0].ID)
	assert.Equal(t, DoNothing, g.Boundary[1].ID)
	assert.True(t, near(-1, g.Boundary[0].Normal[0]))
	assert.True(t, near(1, g.Boundary[1].Normal[0]))
	assert.True(t, near(float64(n-1)*h, g.Boundary[1].Position[0]))
}

func TestRingGraph(t *testing.T) {
	var (
		n = 12
		h = 1. / 12.
		g = NewRingGraph(n, h)
	)
	assert.Equal(t, n, g.NInternal)
	assert.Equal(t, 0, len(g.Boundary))
	assert.True(t, near(1, g.Measure))
	for i := 0; i < n; i++ {
		assert.Equal(t, 3, g.RowLength(i))
		var sum float64
		for colIdx := 0; colIdx < g.RowLength(i); colIdx++ {
			sum += g.CijAt(i, colIdx)[0]
			if colIdx > 0 {
				assert.True(t, near(-g.CijAt(i, colIdx)[0], g.CjiAt(i, colIdx)[0]))
			}
		}
		assert.True(t, near(0, sum))
		assert.True(t, near(h, g.ML[i]))
	}
}

func TestGraphFromCSR(t *testing.T) {
	// Assembling from sparse matrices reproduces the direct construction
	var (
		n    = 6
		h    = 0.2
		ref  = NewLineGraph(n, h, DoNothing, DoNothing)
		cx   = sparse.NewDOK(n, n)
		cy   = sparse.NewDOK(n, n)
		m    = sparse.NewDOK(n, n)
		beta = sparse.NewDOK(n, n)
		ml   = mat.NewVecDense(n, nil)
	)
	for i := 0; i < n; i++ {
		ml.SetVec(i, ref.ML[i])
		for colIdx := 0; colIdx < ref.RowLength(i); colIdx++ {
			j := ref.Col(i, colIdx)
			cx.Set(i, j, ref.CijAt(i, colIdx)[0])
			m.Set(i, j, ref.MijAt(i, colIdx))
			beta.Set(i, j, ref.BetaAt(i, colIdx))
		}
	}
	g := NewGraphFromCSR(cx.ToCSR(), cy.ToCSR(), m.ToCSR(), beta.ToCSR(), ml, ref.Measure)

	assert.Equal(t, n, g.NNodes)
	assert.True(t, near(ref.Measure, g.Measure))
	for i := 0; i < n; i++ {
		assert.Equal(t, i, g.Col(i, 0))
		assert.Equal(t, ref.RowLength(i), g.RowLength(i))
		for colIdx := 0; colIdx < ref.RowLength(i); colIdx++ {
			var (
				j   = ref.Col(i, colIdx)
				idx = findCol(g, i, j)
			)
			assert.True(t, near(ref.CijAt(i, colIdx)[0], g.CijAt(i, idx)[0]))
			assert.True(t, near(0, g.CijAt(i, idx)[1]))
			assert.True(t, near(ref.MijAt(i, colIdx), g.MijAt(i, idx)))
			assert.True(t, near(ref.BetaAt(i, colIdx), g.BetaAt(i, idx)))
		}
		assert.True(t, near(ref.ML[i], g.ML[i]))
	}
}

func TestSplitLine(t *testing.T) {
	var (
		n     = 20
		h     = 0.1
		ranks = 3
		ref   = NewLineGraph(n, h, Slip, Slip)
		parts = SplitLine(n, h, ranks, Slip, Slip)
	)
	assert.Equal(t, ranks, len(parts))

	var nOwnedTot int
	for r, g := range parts {
		nOwnedTot += g.NOwned
		// Ordering contract: exports, interior, owned boundary, ghosts
		assert.True(t, g.NExport <= g.NInternal)
		assert.True(t, g.NInternal <= g.NOwned)
		assert.True(t, g.NOwned <= g.NNodes)
		if r == 0 || r == ranks-1 {
			assert.Equal(t, 1, g.NOwned-g.NInternal)
		} else {
			assert.Equal(t, g.NOwned, g.NInternal)
		}

		// Every stored edge between owned nodes matches the global graph
		for i := 0; i < g.NOwned; i++ {
			gi := g.Halo.GlobalID[i]
			assert.True(t, near(ref.ML[gi], g.ML[i]))
			for colIdx := 0; colIdx < g.RowLength(i); colIdx++ {
				gj := g.Halo.GlobalID[g.Col(i, colIdx)]
				refIdx := findCol(ref, gi, gj)
				assert.True(t, near(ref.CijAt(gi, refIdx)[0], g.CijAt(i, colIdx)[0]))
				assert.True(t, near(ref.MijAt(gi, refIdx), g.MijAt(i, colIdx)))
				assert.True(t, near(ref.BetaAt(gi, refIdx), g.BetaAt(i, colIdx)))
			}
		}

		// Coupling pairs are exactly the owned->ghost edges
		for _, pair := range g.CouplingBoundaryPairs {
			i, colIdx, j := pair[0], pair[1], pair[2]
			assert.True(t, i < g.NOwned)
			assert.True(t, j >= g.NOwned)
			assert.Equal(t, j, g.Col(i, colIdx))
			// The mirrored edge is stored on the ghost row
			et := g.TransposedEntry(i, colIdx)
			assert.True(t, et >= 0)
			assert.True(t, near(-g.CijAt(i, colIdx)[0], g.Cij[et][0]))
		}
	}
	assert.Equal(t, n, nOwnedTot)

	// Halo consistency: what r sends to p lands in p's ghost slots for r,
	// referring to the same global nodes in the same order
	for r, g := range parts {
		for p := 0; p < ranks; p++ {
			send := g.Halo.SendTo[p]
			if len(send) == 0 {
				continue
			}
			recv := parts[p].Halo.RecvFrom[r]
			assert.Equal(t, len(send), len(recv))
			for k := range send {
				assert.Equal(t, g.Halo.GlobalID[send[k]], parts[p].Halo.GlobalID[recv[k]])
				assert.True(t, recv[k] >= parts[p].NOwned)
				assert.True(t, send[k] < g.NExport)
			}
		}
	}
}

func TestSplitLineBoundary(t *testing.T) {
	parts := SplitLine(15, 0.5, 3, NoSlip, Dynamic)
	assert.Equal(t, 1, len(parts[0].Boundary))
	assert.Equal(t, 0, len(parts[1].Boundary))
	assert.Equal(t, 1, len(parts[2].Boundary))
	assert.Equal(t, NoSlip, parts[0].Boundary[0].ID)
	assert.Equal(t, Dynamic, parts[2].Boundary[0].ID)
	assert.Equal(t, 0, parts[0].Halo.GlobalID[parts[0].Boundary[0].Node])
	assert.Equal(t, 14, parts[2].Halo.GlobalID[parts[2].Boundary[0].Node])
}

func findCol(g *Graph, i, j int) (colIdx int) {
	for colIdx = 0; colIdx < g.RowLength(i); colIdx++ {
		if g.Col(i, colIdx) == j {
			return
		}
	}
	panic(fmt.Errorf("no edge (%d,%d)", i, j))
}

func near(a, b float64) (l bool) {
	bound := 1.e-8 * math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	if math.Abs(a-b) <= bound {
		l = true
	}
	return
}
