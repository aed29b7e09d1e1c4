package hyperbolic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hypgraph/hypgraph/graph"
)

func TestClusterGhostExchange(t *testing.T) {
	var (
		ranks = 3
		parts = graph.SplitLine(20, 0.1, ranks, graph.DoNothing, graph.DoNothing)
		c     = NewCluster(ranks)
		wg    sync.WaitGroup
	)
	for r := 0; r < ranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			var (
				g  = parts[r]
				ex = c.Exchanger(g)
				v  = make([]float64, g.NNodes)
				u  = make([]State, g.NNodes)
				p  = make([]Precomputed, g.NNodes)
			)
			for i := 0; i < g.NNodes; i++ {
				gid := float64(g.Halo.GlobalID[i])
				if i < g.NOwned {
					v[i] = gid
					u[i] = State{gid, 2 * gid, 3 * gid, 4 * gid}
					p[i] = Precomputed{gid, -gid}
				} else {
					v[i] = -1
				}
			}

			ex.StartFloats(1, v)
			ex.Finish(1)
			ex.StartStates(2, u)
			ex.Finish(2)
			ex.StartPrecomputed(3, p)
			ex.Finish(3)

			for i := g.NOwned; i < g.NNodes; i++ {
				gid := float64(g.Halo.GlobalID[i])
				assert.Equal(t, gid, v[i])
				assert.Equal(t, State{gid, 2 * gid, 3 * gid, 4 * gid}, u[i])
				assert.Equal(t, Precomputed{gid, -gid}, p[i])
			}
		}(r)
	}
	wg.Wait()
}

func TestClusterRowExchange(t *testing.T) {
	var (
		ranks = 2
		parts = graph.SplitLine(14, 0.25, ranks, graph.DoNothing, graph.DoNothing)
		c     = NewCluster(ranks)
		wg    sync.WaitGroup

		edgeValue = func(gi, gj int) float64 { return float64(100*gi + gj) }
	)
	for r := 0; r < ranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			var (
				g    = parts[r]
				ex   = c.Exchanger(g)
				edge = make([]float64, g.NumEdges())
			)
			for i := 0; i < g.NOwned; i++ {
				for colIdx := 0; colIdx < g.RowLength(i); colIdx++ {
					gi := g.Halo.GlobalID[i]
					gj := g.Halo.GlobalID[g.Col(i, colIdx)]
					edge[g.Entry(i, colIdx)] = edgeValue(gi, gj)
				}
			}

			ex.StartRows(7, edge)
			ex.Finish(7)

			// Ghost rows now carry the owner's values for every stored
			// column
			for i := g.NOwned; i < g.NNodes; i++ {
				for colIdx := 0; colIdx < g.RowLength(i); colIdx++ {
					gi := g.Halo.GlobalID[i]
					gj := g.Halo.GlobalID[g.Col(i, colIdx)]
					assert.Equal(t, edgeValue(gi, gj), edge[g.Entry(i, colIdx)])
				}
			}
		}(r)
	}
	wg.Wait()
}

func TestCommunicatorReductions(t *testing.T) {
	var (
		ranks = 3
		c     = NewCluster(ranks)
		vals  = []float64{3.5, -1, 7}
		wg    sync.WaitGroup
	)
	for r := 0; r < ranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			cm := c.Communicator(r)
			assert.Equal(t, -1., cm.MinFloat64(vals[r]))
			assert.True(t, cm.LogicalOr(r == 1))
			assert.False(t, cm.LogicalOr(false))
		}(r)
	}
	wg.Wait()
}

func TestSingleRank(t *testing.T) {
	ex, cm := SingleRank()
	ex.StartFloats(1, nil)
	ex.Finish(1)
	assert.Equal(t, 2.5, cm.MinFloat64(2.5))
	assert.True(t, cm.LogicalOr(true))
}

func TestSyncDispatchFiresOnce(t *testing.T) {
	var (
		fired    = 0
		dispatch = newSyncDispatch(2, func() { fired++ })
		r1, r2   bool
	)
	dispatch.Check(&r1, false)
	assert.Equal(t, 0, fired)
	dispatch.Check(&r1, true)
	assert.Equal(t, 0, fired)
	dispatch.Check(&r1, true) // already ready, no effect
	dispatch.Check(&r2, true)
	assert.Equal(t, 1, fired)
}
