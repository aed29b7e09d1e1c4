package hyperbolic

import (
	"fmt"
	"math"

	"github.com/hypgraph/hypgraph/graph"
	"github.com/hypgraph/hypgraph/utils"
)

// Exchanger updates the ghost layer of a partition. Start posts the
// local export data for one vector under a tag; Finish blocks until the
// matching data of all peers has arrived and scatters it into the ghost
// slots. Tags must increase monotonically over the lifetime of a step
// so that packets of distinct exchanges cannot be confused.
type Exchanger interface {
	StartFloats(tag int, v []float64)
	StartStates(tag int, u []State)
	StartPrecomputed(tag int, p []Precomputed)

	// StartRows exchanges whole ghost rows of an edge-valued matrix,
	// keyed by global column ids.
	StartRows(tag int, edge []float64)

	Finish(tag int)
}

// NoopExchanger serves single-partition runs: there is no ghost layer.
type NoopExchanger struct{}

func (NoopExchanger) StartFloats(int, []float64)          {}
func (NoopExchanger) StartStates(int, []State)            {}
func (NoopExchanger) StartPrecomputed(int, []Precomputed) {}
func (NoopExchanger) StartRows(int, []float64)            {}
func (NoopExchanger) Finish(int)                          {}

const (
	kindFloats = iota
	kindStates
	kindPrecomputed
	kindRows
)

type packet struct {
	tag    int
	from   int
	kind   int
	vals   []float64
	cols   []int // global column ids, row exchange only
	segLen []int // stored entries per exported row, row exchange only
}

// Cluster couples the ranks of one in-process run: a buffered channel
// mesh carries the ghost exchange packets, a MailBox carries the
// blocking all-reduce round trips.
type Cluster struct {
	NRanks int
	chans  [][]chan packet
	mb     *utils.MailBox[float64]
}

func NewCluster(nRanks int) (c *Cluster) {
	c = &Cluster{
		NRanks: nRanks,
		chans:  make([][]chan packet, nRanks),
		mb:     utils.NewMailBox[float64](nRanks),
	}
	for i := range c.chans {
		c.chans[i] = make([]chan packet, nRanks)
		for j := range c.chans[i] {
			c.chans[i][j] = make(chan packet, 8)
		}
	}
	return
}

// Exchanger builds the ghost exchanger of one partition from its halo.
func (c *Cluster) Exchanger(g *graph.Graph) Exchanger {
	if g.Halo == nil {
		return NoopExchanger{}
	}
	ex := &rankExchanger{c: c, g: g, halo: g.Halo}
	ex.globalToLocal = make(map[int]int, g.NNodes)
	for l, gi := range g.Halo.GlobalID {
		ex.globalToLocal[gi] = l
	}
	return ex
}

func (c *Cluster) Communicator(rank int) *Communicator {
	return &Communicator{c: c, rank: rank}
}

// SingleRank returns the exchanger/communicator pair of a run without
// domain decomposition.
func SingleRank() (Exchanger, *Communicator) {
	return NoopExchanger{}, &Communicator{c: &Cluster{NRanks: 1}}
}

type pendingExchange struct {
	tag   int
	kind  int
	vec   []float64
	state []State
	prec  []Precomputed
	edge  []float64
}

type rankExchanger struct {
	c             *Cluster
	g             *graph.Graph
	halo          *graph.Halo
	globalToLocal map[int]int
	pending       *pendingExchange
}

func (ex *rankExchanger) post(tag, kind int, fill func(peer int, pkt *packet)) {
	if ex.pending != nil {
		panic(fmt.Errorf("exchange %d still pending, cannot start %d", ex.pending.tag, tag))
	}
	for peer := range ex.halo.SendTo {
		if len(ex.halo.SendTo[peer]) == 0 {
			continue
		}
		pkt := packet{tag: tag, from: ex.halo.Rank, kind: kind}
		fill(peer, &pkt)
		ex.c.chans[ex.halo.Rank][peer] <- pkt
	}
}

func (ex *rankExchanger) StartFloats(tag int, v []float64) {
	ex.post(tag, kindFloats, func(peer int, pkt *packet) {
		for _, i := range ex.halo.SendTo[peer] {
			pkt.vals = append(pkt.vals, v[i])
		}
	})
	ex.pending = &pendingExchange{tag: tag, kind: kindFloats, vec: v}
}

func (ex *rankExchanger) StartStates(tag int, u []State) {
	ex.post(tag, kindStates, func(peer int, pkt *packet) {
		for _, i := range ex.halo.SendTo[peer] {
			pkt.vals = append(pkt.vals, u[i][0], u[i][1], u[i][2], u[i][3])
		}
	})
	ex.pending = &pendingExchange{tag: tag, kind: kindStates, state: u}
}

func (ex *rankExchanger) StartPrecomputed(tag int, p []Precomputed) {
	ex.post(tag, kindPrecomputed, func(peer int, pkt *packet) {
		for _, i := range ex.halo.SendTo[peer] {
			pkt.vals = append(pkt.vals, p[i][0], p[i][1])
		}
	})
	ex.pending = &pendingExchange{tag: tag, kind: kindPrecomputed, prec: p}
}

func (ex *rankExchanger) StartRows(tag int, edge []float64) {
	g := ex.g
	ex.post(tag, kindRows, func(peer int, pkt *packet) {
		for _, i := range ex.halo.SendTo[peer] {
			rowLength := g.RowLength(i)
			pkt.segLen = append(pkt.segLen, rowLength)
			for colIdx := 0; colIdx < rowLength; colIdx++ {
				pkt.cols = append(pkt.cols, ex.halo.GlobalID[g.Col(i, colIdx)])
				pkt.vals = append(pkt.vals, edge[g.Entry(i, colIdx)])
			}
		}
	})
	ex.pending = &pendingExchange{tag: tag, kind: kindRows, edge: edge}
}

func (ex *rankExchanger) Finish(tag int) {
	p := ex.pending
	if p == nil || p.tag != tag {
		panic(fmt.Errorf("no pending exchange with tag %d", tag))
	}
	ex.pending = nil
	for peer := range ex.halo.RecvFrom {
		ghosts := ex.halo.RecvFrom[peer]
		if len(ghosts) == 0 {
			continue
		}
		pkt := <-ex.c.chans[peer][ex.halo.Rank]
		if pkt.tag != tag || pkt.kind != p.kind || pkt.from != peer {
			panic(fmt.Errorf("exchange protocol mismatch: want tag %d from %d, have tag %d from %d",
				tag, peer, pkt.tag, pkt.from))
		}
		switch p.kind {
		case kindFloats:
			for k, gl := range ghosts {
				p.vec[gl] = pkt.vals[k]
			}
		case kindStates:
			for k, gl := range ghosts {
				copy(p.state[gl][:], pkt.vals[4*k:4*k+4])
			}
		case kindPrecomputed:
			for k, gl := range ghosts {
				copy(p.prec[gl][:], pkt.vals[2*k:2*k+2])
			}
		case kindRows:
			ex.scatterRows(p.edge, ghosts, pkt)
		}
	}
}

// scatterRows writes received row segments into the ghost rows of an
// edge matrix. The local ghost row stores a subset of the owner's row,
// matched by global column id.
func (ex *rankExchanger) scatterRows(edge []float64, ghosts []int, pkt packet) {
	var (
		g   = ex.g
		off = 0
	)
	for k, gl := range ghosts {
		n := pkt.segLen[k]
		for colIdx := 0; colIdx < g.RowLength(gl); colIdx++ {
			gcol := ex.halo.GlobalID[g.Col(gl, colIdx)]
			for s := 0; s < n; s++ {
				if pkt.cols[off+s] == gcol {
					edge[g.Entry(gl, colIdx)] = pkt.vals[off+s]
					break
				}
			}
		}
		off += n
	}
}

// Communicator provides the cross-rank reductions of the step: the
// step-size minimum after phase 3 and the restart flag after phase 7.
// Rank 0 gathers, reduces and broadcasts over the cluster MailBox.
type Communicator struct {
	c    *Cluster
	rank int
}

func (cm *Communicator) MinFloat64(x float64) float64 {
	return cm.allreduce(x, math.Min)
}

func (cm *Communicator) LogicalOr(b bool) bool {
	v := 0.
	if b {
		v = 1.
	}
	return cm.allreduce(v, math.Max) > 0.5
}

func (cm *Communicator) allreduce(x float64, op func(a, b float64) float64) float64 {
	var (
		nr = cm.c.NRanks
		mb = cm.c.mb
	)
	if nr == 1 {
		return x
	}
	if cm.rank != 0 {
		mb.PostMessage(cm.rank, 0, x)
		mb.DeliverMyMessages(cm.rank)
		buf := <-mb.MessageChans[cm.rank]
		x = buf.Cells()[0]
		buf.Reset()
		return x
	}
	for p := 1; p < nr; p++ {
		buf := <-mb.MessageChans[0]
		for _, v := range buf.Cells() {
			x = op(x, v)
		}
		buf.Reset()
	}
	for p := 1; p < nr; p++ {
		mb.PostMessage(0, p, x)
	}
	mb.DeliverMyMessages(0)
	return x
}
