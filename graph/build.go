package graph

import (
	"fmt"

	"github.com/hypgraph/hypgraph/utils"
)

// Uniform piecewise-linear elements on a 1-D mesh with spacing h give the
// classical coefficient stencil
//   c_ij   = -1/2, 0, 1/2   (left, diag interior, right)
//   m_ij   = h/6 off diagonal, 2h/3 interior diagonal, h/3 at the ends
//   beta_ij = -1/h off diagonal, 2/h interior diagonal, 1/h at the ends
//   m_i    = h interior, h/2 at the ends
// with the diagonal c shifted to -1/2 resp. +1/2 at the two end nodes.

type lineCoeffs struct {
	n int
	h float64
}

func (lc lineCoeffs) ml(i int) float64 {
	if i == 0 || i == lc.n-1 {
		return 0.5 * lc.h
	}
	return lc.h
}

func (lc lineCoeffs) cDiag(i int) float64 {
	switch i {
	case 0:
		return -0.5
	case lc.n - 1:
		return 0.5
	default:
		return 0
	}
}

func (lc lineCoeffs) mDiag(i int) float64 {
	if i == 0 || i == lc.n-1 {
		return lc.h / 3.
	}
	return 2. * lc.h / 3.
}

func (lc lineCoeffs) betaDiag(i int) float64 {
	if i == 0 || i == lc.n-1 {
		return 1. / lc.h
	}
	return 2. / lc.h
}

// cOff is the c_ij coefficient toward neighbor j = i+dir, dir in {-1,+1}.
func (lc lineCoeffs) cOff(dir int) float64 {
	return 0.5 * float64(dir)
}

// NewLineGraph builds the graph of n nodes on the interval [0,(n-1)h]
// with the given boundary conditions at the two end nodes.
func NewLineGraph(n int, h float64, left, right BoundaryID) (g *Graph) {
	var (
		lc     = lineCoeffs{n: n, h: h}
		rowPtr = make([]int, n+1)
		cols   []int
		cij    [][2]float64
		mij    []float64
		betaij []float64
		ml     = make([]float64, n)
	)
	if n < 3 {
		panic(fmt.Errorf("line graph needs at least 3 nodes, have %d", n))
	}
	for i := 0; i < n; i++ {
		ml[i] = lc.ml(i)
		cols = append(cols, i)
		cij = append(cij, [2]float64{lc.cDiag(i), 0})
		mij = append(mij, lc.mDiag(i))
		betaij = append(betaij, lc.betaDiag(i))
		for _, dir := range [2]int{-1, 1} {
			j := i + dir
			if j < 0 || j >= n {
				continue
			}
			cols = append(cols, j)
			cij = append(cij, [2]float64{lc.cOff(dir), 0})
			mij = append(mij, h/6.)
			betaij = append(betaij, -1./h)
		}
		rowPtr[i+1] = len(cols)
	}
	g = NewGraph(rowPtr, cols, cij, mij, betaij, ml, float64(n-1)*h)
	g.SetBoundary([]BoundaryNode{
		{Node: 0, Normal: [2]float64{-1, 0}, ID: left, Position: [2]float64{0, 0}},
		{Node: n - 1, Normal: [2]float64{1, 0}, ID: right, Position: [2]float64{float64(n-1) * h, 0}},
	})
	// End rows are walked by the scalar lane
	g.NInternal = n - 2
	return
}

// NewRingGraph builds a periodic line of n nodes, circumference n*h.
// There is no boundary, so the graph conserves all state components
// exactly over a step.
func NewRingGraph(n int, h float64) (g *Graph) {
	var (
		rowPtr = make([]int, n+1)
		cols   []int
		cij    [][2]float64
		mij    []float64
		betaij []float64
		ml     = make([]float64, n)
	)
	if n < 3 {
		panic(fmt.Errorf("ring graph needs at least 3 nodes, have %d", n))
	}
	for i := 0; i < n; i++ {
		ml[i] = h
		cols = append(cols, i)
		cij = append(cij, [2]float64{0, 0})
		mij = append(mij, 2.*h/3.)
		betaij = append(betaij, 2./h)
		for _, dir := range [2]int{-1, 1} {
			j := (i + dir + n) % n
			cols = append(cols, j)
			cij = append(cij, [2]float64{0.5 * float64(dir), 0})
			mij = append(mij, h/6.)
			betaij = append(betaij, -1./h)
		}
		rowPtr[i+1] = len(cols)
	}
	g = NewGraph(rowPtr, cols, cij, mij, betaij, ml, float64(n)*h)
	g.SetBoundary(nil)
	return
}

// SplitLine decomposes the n-node line graph into ranks contiguous
// partitions with a one-node ghost layer on each internal interface.
// Local node ordering per rank follows the driver's contract: export
// rows first, then interior rows, then owned boundary rows, then ghosts.
func SplitLine(n int, h float64, ranks int, left, right BoundaryID) (parts []*Graph) {
	var (
		lc = lineCoeffs{n: n, h: h}
		pm = utils.NewPartitionMap(ranks, n)
	)
	parts = make([]*Graph, ranks)
	for r := 0; r < ranks; r++ {
		g0, g1 := pm.GetBucketRange(r)
		if g1-g0 < 3 {
			panic(fmt.Errorf("rank %d owns %d nodes, need at least 3", r, g1-g0))
		}
		var (
			exports  []int // global
			boundary []int
			interior []int
			ghosts   []int
		)
		for gi := g0; gi < g1; gi++ {
			switch {
			case r > 0 && gi == g0, r < ranks-1 && gi == g1-1:
				exports = append(exports, gi)
			case gi == 0 || gi == n-1:
				boundary = append(boundary, gi)
			default:
				interior = append(interior, gi)
			}
		}
		if r > 0 {
			ghosts = append(ghosts, g0-1)
		}
		if r < ranks-1 {
			ghosts = append(ghosts, g1)
		}

		globalID := append(append(append(append([]int{}, exports...), interior...), boundary...), ghosts...)
		local := make(map[int]int, len(globalID))
		for l, gi := range globalID {
			local[gi] = l
		}
		var (
			nLocal = len(globalID)
			rowPtr = make([]int, nLocal+1)
			cols   []int
			cij    [][2]float64
			mij    []float64
			betaij []float64
			ml     = make([]float64, nLocal)
		)
		for l := 0; l < nLocal; l++ {
			gi := globalID[l]
			ml[l] = lc.ml(gi)
			cols = append(cols, l)
			cij = append(cij, [2]float64{lc.cDiag(gi), 0})
			mij = append(mij, lc.mDiag(gi))
			betaij = append(betaij, lc.betaDiag(gi))
			for _, dir := range [2]int{-1, 1} {
				gj := gi + dir
				if gj < 0 || gj >= n {
					continue
				}
				lj, present := local[gj]
				if !present {
					continue // stencil reaches past the ghost layer
				}
				cols = append(cols, lj)
				cij = append(cij, [2]float64{lc.cOff(dir), 0})
				mij = append(mij, h/6.)
				betaij = append(betaij, -1./h)
			}
			rowPtr[l+1] = len(cols)
		}
		g := NewGraph(rowPtr, cols, cij, mij, betaij, ml, float64(n-1)*h)
		g.NExport = len(exports)
		g.NOwned = len(exports) + len(interior) + len(boundary)
		g.NInternal = len(exports) + len(interior)

		var bnodes []BoundaryNode
		for _, gi := range boundary {
			bn := BoundaryNode{
				Node:     local[gi],
				Position: [2]float64{float64(gi) * h, 0},
			}
			if gi == 0 {
				bn.Normal, bn.ID = [2]float64{-1, 0}, left
			} else {
				bn.Normal, bn.ID = [2]float64{1, 0}, right
			}
			bnodes = append(bnodes, bn)
		}
		g.SetBoundary(bnodes)

		for i := 0; i < g.NOwned; i++ {
			for colIdx := 0; colIdx < g.RowLength(i); colIdx++ {
				if g.Col(i, colIdx) >= g.NOwned {
					g.CouplingBoundaryPairs = append(g.CouplingBoundaryPairs,
						[3]int{i, colIdx, g.Col(i, colIdx)})
				}
			}
		}

		halo := &Halo{
			Rank:     r,
			NRanks:   ranks,
			GlobalID: globalID,
			SendTo:   make([][]int, ranks),
			RecvFrom: make([][]int, ranks),
		}
		if r > 0 {
			halo.SendTo[r-1] = []int{local[g0]}
			halo.RecvFrom[r-1] = []int{local[g0-1]}
		}
		if r < ranks-1 {
			halo.SendTo[r+1] = []int{local[g1-1]}
			halo.RecvFrom[r+1] = []int{local[g1]}
		}
		g.Halo = halo
		parts[r] = g
	}
	return
}
