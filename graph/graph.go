package graph

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// BoundaryID tags a boundary node with the condition the physics
// description should apply after each time step.
type BoundaryID int

const (
	DoNothing BoundaryID = iota
	Dirichlet
	Slip
	NoSlip
	Dynamic
)

var BoundaryNames = map[string]BoundaryID{
	"do_nothing": DoNothing,
	"dirichlet":  Dirichlet,
	"slip":       Slip,
	"no_slip":    NoSlip,
	"dynamic":    Dynamic,
}

// BoundaryNode carries the weighted outward normal, the boundary id tag
// and the physical position of a node with support on the boundary.
type BoundaryNode struct {
	Node     int
	Normal   [2]float64
	ID       BoundaryID
	Position [2]float64
}

// Halo describes the ghost layer a partition shares with its peer ranks.
// Owned nodes occupy [0,NOwned) in local numbering, ghost copies of
// remote nodes follow. SendTo[r] lists local owned indices exported to
// rank r; RecvFrom[r] lists the local ghost indices they land in, in the
// same order the owner sends them.
type Halo struct {
	Rank     int
	NRanks   int
	GlobalID []int // local node -> global node
	SendTo   [][]int
	RecvFrom [][]int
}

// Graph is the static sparse node/edge structure the step operates on.
// Rows are stored CSR style with the diagonal as entry zero of each row.
// The graph is immutable after construction; only the numeric payload
// vectors owned by the caller/stepper mutate during a step.
//
// Local node ordering: [0,NExport) rows shared with other ranks,
// [0,NInternal) rows safe for wide batched loops, [NInternal,NOwned)
// boundary/mixed rows walked by the scalar lane, [NOwned,NNodes) ghost
// rows.
type Graph struct {
	NNodes    int
	NOwned    int
	NInternal int
	NExport   int

	RowPtr []int
	Cols   []int
	Cij    [][2]float64
	Mij    []float64
	Betaij []float64

	ML      []float64
	MLInv   []float64
	Measure float64

	Boundary    []BoundaryNode
	boundarySet map[int]bool

	// Edges (i,colIdx,j) whose mirrored entry lives on another rank and
	// must be completed in the boundary pass of the viscosity assembly.
	CouplingBoundaryPairs [][3]int

	Halo *Halo

	transpose []int // entry index of the mirrored edge, -1 if not local
}

// NewGraph assembles a graph from raw CSR data. The diagonal must be the
// first entry of every row.
func NewGraph(rowPtr, cols []int, cij [][2]float64, mij, betaij, ml []float64, measure float64) (g *Graph) {
	var (
		n = len(rowPtr) - 1
	)
	if len(cols) != rowPtr[n] || len(cij) != len(cols) ||
		len(mij) != len(cols) || len(betaij) != len(cols) || len(ml) != n {
		panic(fmt.Errorf("inconsistent CSR dimensions: n=%d nnz=%d", n, rowPtr[n]))
	}
	g = &Graph{
		NNodes:    n,
		NOwned:    n,
		NInternal: n,
		RowPtr:    rowPtr,
		Cols:      cols,
		Cij:       cij,
		Mij:       mij,
		Betaij:    betaij,
		ML:        ml,
		MLInv:     make([]float64, n),
		Measure:   measure,
	}
	for i := 0; i < n; i++ {
		if cols[rowPtr[i]] != i {
			panic(fmt.Errorf("row %d does not start with its diagonal", i))
		}
		g.MLInv[i] = 1. / ml[i]
	}
	g.buildTranspose()
	return
}

// NewGraphFromCSR assembles a graph from pre-assembled finite element
// matrices: the two cartesian components of the c_ij matrix, the
// consistent mass matrix and the stiffness matrix, plus the lumped mass
// vector. All four sparse matrices must share one sparsity pattern.
func NewGraphFromCSR(cx, cy, m, beta *sparse.CSR, ml *mat.VecDense, measure float64) (g *Graph) {
	var (
		n, nc = m.Dims()
	)
	if n != nc || ml.Len() != n {
		panic(fmt.Errorf("mass matrix must be square, have [%d,%d], lumped %d", n, nc, ml.Len()))
	}
	rowPtr := make([]int, n+1)
	var cols []int
	var cij [][2]float64
	var mij, betaij []float64
	for i := 0; i < n; i++ {
		// Diagonal first, then neighbors in column order
		cols = append(cols, i)
		cij = append(cij, [2]float64{cx.At(i, i), cy.At(i, i)})
		mij = append(mij, m.At(i, i))
		betaij = append(betaij, beta.At(i, i))
		m.DoRowNonZero(i, func(_, j int, v float64) {
			if j == i {
				return
			}
			cols = append(cols, j)
			cij = append(cij, [2]float64{cx.At(i, j), cy.At(i, j)})
			mij = append(mij, v)
			betaij = append(betaij, beta.At(i, j))
		})
		rowPtr[i+1] = len(cols)
	}
	mlD := make([]float64, n)
	for i := 0; i < n; i++ {
		mlD[i] = ml.AtVec(i)
	}
	return NewGraph(rowPtr, cols, cij, mij, betaij, mlD, measure)
}

func (g *Graph) buildTranspose() {
	g.transpose = make([]int, len(g.Cols))
	for e := range g.transpose {
		g.transpose[e] = -1
	}
	for i := 0; i < g.NNodes; i++ {
		for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
			j := g.Cols[e]
			if j == i {
				g.transpose[e] = e
				continue
			}
			for f := g.RowPtr[j]; f < g.RowPtr[j+1]; f++ {
				if g.Cols[f] == i {
					g.transpose[e] = f
					break
				}
			}
		}
	}
}

// RowLength returns the number of stored entries of row i, diagonal
// included.
func (g *Graph) RowLength(i int) int {
	return g.RowPtr[i+1] - g.RowPtr[i]
}

// Entry translates (row, column index within row) to the flat edge index
// used by all edge-valued payload slices.
func (g *Graph) Entry(i, colIdx int) int {
	return g.RowPtr[i] + colIdx
}

// Col returns the neighbor node of entry colIdx in row i.
func (g *Graph) Col(i, colIdx int) int {
	return g.Cols[g.RowPtr[i]+colIdx]
}

// TransposedEntry returns the flat index of the mirrored edge (j,i) for
// entry colIdx of row i. Mirrored edges exist for every locally stored
// edge, including edges into ghost rows.
func (g *Graph) TransposedEntry(i, colIdx int) int {
	return g.transpose[g.RowPtr[i]+colIdx]
}

// CijAt returns the edge coefficient c_ij of entry colIdx in row i.
func (g *Graph) CijAt(i, colIdx int) [2]float64 {
	return g.Cij[g.RowPtr[i]+colIdx]
}

// CjiAt returns the mirrored coefficient c_ji.
func (g *Graph) CjiAt(i, colIdx int) [2]float64 {
	return g.Cij[g.transpose[g.RowPtr[i]+colIdx]]
}

func (g *Graph) MijAt(i, colIdx int) float64 {
	return g.Mij[g.RowPtr[i]+colIdx]
}

func (g *Graph) BetaAt(i, colIdx int) float64 {
	return g.Betaij[g.RowPtr[i]+colIdx]
}

// IsBoundary reports whether node i has support on the domain boundary.
func (g *Graph) IsBoundary(i int) bool {
	return g.boundarySet[i]
}

// SetBoundary attaches the boundary-node list. Called once during
// assembly, before the graph is shared.
func (g *Graph) SetBoundary(bnodes []BoundaryNode) {
	g.Boundary = bnodes
	g.boundarySet = make(map[int]bool, len(bnodes))
	for _, bn := range bnodes {
		g.boundarySet[bn.Node] = true
	}
}

// NumEdges returns the stored entry count including diagonals.
func (g *Graph) NumEdges() int {
	return len(g.Cols)
}
