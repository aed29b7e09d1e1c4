package hyperbolic

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hypgraph/hypgraph/graph"
	"github.com/hypgraph/hypgraph/utils"
)

// ErrRestart reports that the completed step produced a state outside
// the invariant domain and should be redone with a smaller step size.
// The candidate state in newU is left as computed; the caller decides
// whether to accept it or retry.
var ErrRestart = errors.New("invariant domain violated, restart with a smaller time-step size")

// Stage is a previously computed update stage entering the high-order
// residual with the given weight.
type Stage struct {
	U      []State
	Prec   []Precomputed
	Weight float64
}

// Stepper performs the graph-based invariant-domain-preserving update:
// a provably admissible low-order step blended edge by edge with a
// high-order step through convex limiting.
//
// One Stepper per partition; Step and ApplyBoundaryConditions are
// called collectively by all ranks of a cluster.
type Stepper struct {
	g    *graph.Graph
	desc Description
	opts Options
	ex   Exchanger
	comm *Communicator

	// InitialData supplies prescribed boundary data for dirichlet and
	// dynamic boundary nodes.
	InitialData func(pos [2]float64, t float64) State

	scalarPM *utils.PartitionMap // scalar lane [NInternal, NOwned)
	batchPM  *utils.PartitionMap // batched lane [0, NInternal)
	ownedPM  *utils.PartitionMap // all owned rows
	pairPM   *utils.PartitionMap // coupling boundary pairs

	prec    []Precomputed
	alpha   []float64
	bounds  []Bounds
	r       []State
	dij     []float64
	pij     []State
	lij     []float64
	lijNext []float64

	maxRowLength int
	channel      int

	// Counters of invariant-domain violations encountered so far, per
	// the configured strategy.
	NWarnings int
	NRestarts int
}

func NewStepper(g *graph.Graph, desc Description, opts Options, ex Exchanger, comm *Communicator) (s *Stepper) {
	opts.Validate()
	s = &Stepper{
		g:        g,
		desc:     desc,
		opts:     opts,
		ex:       ex,
		comm:     comm,
		scalarPM: utils.NewPartitionMap(opts.ParallelDegree, g.NOwned-g.NInternal),
		batchPM:  utils.NewPartitionMap(opts.ParallelDegree, g.NInternal),
		ownedPM:  utils.NewPartitionMap(opts.ParallelDegree, g.NOwned),
		pairPM:   utils.NewPartitionMap(opts.ParallelDegree, len(g.CouplingBoundaryPairs)),
		prec:     make([]Precomputed, g.NNodes),
		alpha:    make([]float64, g.NNodes),
		bounds:   make([]Bounds, g.NOwned),
		r:        make([]State, g.NNodes),
		dij:      make([]float64, g.NumEdges()),
		pij:      make([]State, g.NumEdges()),
		lij:      make([]float64, g.NumEdges()),
		lijNext:  make([]float64, g.NumEdges()),
		channel:  10,
	}
	for i := 0; i < g.NNodes; i++ {
		if n := g.RowLength(i); n > s.maxRowLength {
			s.maxRowLength = n
		}
	}
	return
}

func (s *Stepper) Graph() *graph.Graph        { return s.g }
func (s *Stepper) Options() Options           { return s.opts }
func (s *Stepper) Precomputed() []Precomputed { return s.prec }

// ExchangeStates refreshes the ghost layer of a state vector. Callers
// use it once after setting initial data; during time stepping the
// boundary application keeps ghosts current.
func (s *Stepper) ExchangeStates(U []State) {
	s.channel++
	s.ex.StartStates(s.channel, U)
	s.ex.Finish(s.channel)
}

// region runs one parallel phase over the owned rows. Every worker
// walks its slice of the scalar lane [NInternal,NOwned) first, then its
// slice of the batched lane [0,NInternal). The payload fires once all
// workers have passed the rows exported to other ranks.
func (s *Stepper) region(payload func(), row func(worker, i int)) {
	var (
		dispatch = newSyncDispatch(s.opts.ParallelDegree, payload)
		wg       sync.WaitGroup
	)
	for np := 0; np < s.opts.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			ready := false
			lo, hi := s.scalarPM.GetBucketRange(np)
			for i := s.g.NInternal + lo; i < s.g.NInternal+hi; i++ {
				row(np, i)
			}
			lo, hi = s.batchPM.GetBucketRange(np)
			for i := lo; i < hi; i++ {
				dispatch.Check(&ready, i >= s.g.NExport)
				row(np, i)
			}
			dispatch.Check(&ready, true)
		}(np)
	}
	wg.Wait()
}

// Step advances oldU by one forward-Euler step of size tau into newU.
// A zero tau requests the maximal admissible step size; the computed
// maximum is returned either way. Stages enter the high-order residual
// with their weights (the low-order update never sees them).
//
// Ghost entries of oldU and of every stage vector must be current on
// entry; newU is returned without its ghost layer updated.
func (s *Stepper) Step(oldU []State, stages []Stage, newU []State, tau float64) (tauMax float64, err error) {
	var (
		g          = s.g
		desc       = s.desc
		np         = s.opts.ParallelDegree
		measureInv = 1. / g.Measure
		t          = 0.
		restart    atomic.Bool
	)
	if len(oldU) != g.NNodes || len(newU) != g.NNodes {
		panic(fmt.Errorf("state vector length %d, graph has %d nodes", len(oldU), g.NNodes))
	}

	weight := 1.
	for _, st := range stages {
		weight -= st.Weight
	}

	/*
	 * Phase 1: precompute auxiliary values
	 */

	s.region(s.exchangePrecomputed(), func(worker, i int) {
		s.prec[i] = desc.Precompute(oldU[i])
	})

	/*
	 * Phase 2: upper-triangular d_ij and smoothness alpha_i
	 */

	indicators := make([]Indicator, np)
	for n := 0; n < np; n++ {
		indicators[n] = desc.NewIndicator(s.prec, s.opts.IndicatorEVCFactor)
	}
	s.region(s.exchangeAlpha(), func(worker, i int) {
		rowLength := g.RowLength(i)
		if rowLength == 1 {
			return
		}
		var (
			ind = indicators[worker]
			Ui  = oldU[i]
		)
		ind.Reset(i, Ui)
		for colIdx := 1; colIdx < rowLength; colIdx++ {
			var (
				j   = g.Col(i, colIdx)
				Uj  = oldU[j]
				cij = g.CijAt(i, colIdx)
			)
			ind.Accumulate(j, Uj, cij)

			// Only the upper triangle; phase 3 mirrors the rest
			if j < i {
				continue
			}
			norm := math.Hypot(cij[0], cij[1])
			nij := [2]float64{cij[0] / norm, cij[1] / norm}
			s.dij[g.Entry(i, colIdx)] = norm * desc.MaxWaveSpeed(Ui, Uj, nij)
		}
		s.alpha[i] = ind.Alpha(g.ML[i] * measureInv)
	})

	/*
	 * Phase 3: complete d_ij across rank boundaries, symmetrize, fill
	 * the diagonal and reduce the maximal admissible step size
	 */

	var (
		tauBits atomic.Uint64
		wg      sync.WaitGroup
	)
	tauBits.Store(math.Float64bits(math.Inf(1)))

	for n := 0; n < np; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			lo, hi := s.pairPM.GetBucketRange(n)
			for k := lo; k < hi; k++ {
				pair := g.CouplingBoundaryPairs[k]
				i, colIdx, j := pair[0], pair[1], pair[2]
				cji := g.CjiAt(i, colIdx)
				norm := math.Hypot(cji[0], cji[1])
				nji := [2]float64{cji[0] / norm, cji[1] / norm}
				e := g.Entry(i, colIdx)
				s.dij[e] = math.Max(s.dij[e], norm*desc.MaxWaveSpeed(oldU[j], oldU[i], nji))
			}
		}(n)
	}
	wg.Wait()

	for n := 0; n < np; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			localTau := math.Inf(1)
			lo, hi := s.ownedPM.GetBucketRange(n)
			for i := lo; i < hi; i++ {
				rowLength := g.RowLength(i)
				if rowLength == 1 {
					continue
				}
				dSum := 0.
				for colIdx := 1; colIdx < rowLength; colIdx++ {
					e := g.Entry(i, colIdx)
					// mirror the lower triangle left open by phase 2
					if g.Col(i, colIdx) < i {
						s.dij[e] = s.dij[g.TransposedEntry(i, colIdx)]
					}
					dSum -= s.dij[e]
				}
				// Guard against division by zero for degenerate systems
				dSum = math.Min(dSum, -1.e6*math.SmallestNonzeroFloat64)
				s.dij[g.Entry(i, 0)] = dSum

				tauI := s.opts.CFL * g.ML[i] / (-2. * dSum)
				if !g.IsBoundary(i) || s.opts.CFLWithBoundaryNodes {
					localTau = math.Min(localTau, tauI)
				}
			}
			for {
				current := math.Float64frombits(tauBits.Load())
				if current <= localTau {
					break
				}
				if tauBits.CompareAndSwap(math.Float64bits(current), math.Float64bits(localTau)) {
					break
				}
			}
		}(n)
	}
	wg.Wait()

	tauMax = s.comm.MinFloat64(math.Float64frombits(tauBits.Load()))
	if math.IsNaN(tauMax) || math.IsInf(tauMax, 0) || tauMax <= 0. {
		panic(fmt.Errorf("unable to continue: computed maximal time-step size %v", tauMax))
	}
	if tau == 0. {
		tau = tauMax
	}
	if s.opts.PrecomputeOnly {
		return 0., nil
	}

	/*
	 * Phase 4: low-order update, limiter bounds, high-order residual
	 * F_iH and the first part of P_ij
	 */

	limiters := make([]Limiter, np)
	stageFlux := make([][]Contribution, np)
	for n := 0; n < np; n++ {
		limiters[n] = desc.NewLimiter(s.prec, s.opts.limiterParameters())
		stageFlux[n] = make([]Contribution, len(stages))
	}
	s.region(s.exchangeResidual(), func(worker, i int) {
		rowLength := g.RowLength(i)
		if rowLength == 1 {
			return
		}
		var (
			limiter = limiters[worker]
			Ui      = oldU[i]
			UiNew   = Ui
			alphaI  = s.alpha[i]
			mi      = g.ML[i]
			miInv   = g.MLInv[i]
			fluxI   = desc.FluxContribution(s.prec, i, Ui)
			FiH     State
			Si, SiH State
		)
		for si, st := range stages {
			stageFlux[worker][si] = desc.FluxContribution(st.Prec, i, st.U[i])
			if desc.HaveSourceTerms() {
				SiH = SiH.AddScaled(st.Weight, desc.HighOrderSource(st.Prec, i, st.U[i], t, tau))
			}
		}
		if desc.HaveSourceTerms() {
			Si = desc.LowOrderSource(s.prec, i, Ui, t, tau)
			UiNew = UiNew.AddScaled(tau, Si)
			SiH = SiH.AddScaled(weight, desc.HighOrderSource(s.prec, i, Ui, t, tau))
			FiH = FiH.AddScaled(mi, SiH)
		}

		limiter.Reset(i, Ui, fluxI)

		// Systems with equilibrated states need the affine shift over
		// the full stencil before bounds can be accumulated
		var shift State
		if desc.HaveEquilibratedStates() {
			for colIdx := 0; colIdx < rowLength; colIdx++ {
				var (
					j     = g.Col(i, colIdx)
					e     = g.Entry(i, colIdx)
					fluxJ = desc.FluxContribution(s.prec, j, oldU[j])
				)
				shift = shift.Add(desc.AffineShift(fluxI, fluxJ, g.Cij[e], s.dij[e]))
			}
			shift = shift.Scale(tau * miInv)
		}

		for colIdx := 0; colIdx < rowLength; colIdx++ {
			var (
				j      = g.Col(i, colIdx)
				e      = g.Entry(i, colIdx)
				Uj     = oldU[j]
				dij    = s.dij[e]
				dijH   = 0.5 * dij * (alphaI + s.alpha[j])
				cij    = g.Cij[e]
				dijInv = 1. / dij
				betaij = g.Betaij[e]
				mij    = g.Mij[e]
				fluxJ  = desc.FluxContribution(s.prec, j, Uj)
			)
			fluxIJ := desc.Flux(fluxI, fluxJ)
			fc := Contract(fluxIJ, cij)
			UiNew = UiNew.AddScaled(tau*miInv, fc)
			Pij := fc.Scale(-1.)

			scaledCij := [2]float64{dijInv * cij[0], dijInv * cij[1]}
			if desc.HaveEquilibratedStates() {
				UStarIJ, UStarJI := desc.EquilibratedStates(fluxI, fluxJ)
				diff := UStarJI.Sub(UStarIJ)
				UiNew = UiNew.AddScaled(tau*miInv*dij, diff)
				FiH = FiH.AddScaled(dijH, diff)
				Pij = Pij.AddScaled(dijH-dij, diff)
				limiter.Accumulate(j, Uj, fluxJ, UStarIJ, UStarJI, scaledCij, betaij, shift)
			} else {
				diff := Uj.Sub(Ui)
				UiNew = UiNew.AddScaled(tau*miInv*dij, diff)
				FiH = FiH.AddScaled(dijH, diff)
				Pij = Pij.AddScaled(dijH-dij, diff)
				limiter.Accumulate(j, Uj, fluxJ, Ui, Uj, scaledCij, betaij, State{})
			}

			if desc.HaveSourceTerms() {
				FiH = FiH.AddScaled(-mij, SiH)
				Pij = Pij.AddScaled(-mij, Si)
			}

			if desc.HaveHighOrderFlux() {
				hc := Contract(desc.HighOrderFlux(fluxI, fluxJ), cij)
				FiH = FiH.AddScaled(weight, hc)
				Pij = Pij.AddScaled(weight, hc)
			} else {
				FiH = FiH.AddScaled(weight, fc)
				Pij = Pij.AddScaled(weight, fc)
			}

			if desc.HaveSourceTerms() {
				contribution := desc.HighOrderSource(s.prec, j, Uj, t, tau)
				FiH = FiH.AddScaled(weight*mij, contribution)
				Pij = Pij.AddScaled(weight*mij, contribution)
			}

			for si, st := range stages {
				fluxJS := desc.FluxContribution(st.Prec, j, st.U[j])
				var sc State
				if desc.HaveHighOrderFlux() {
					sc = Contract(desc.HighOrderFlux(stageFlux[worker][si], fluxJS), cij)
				} else {
					sc = Contract(desc.Flux(stageFlux[worker][si], fluxJS), cij)
				}
				FiH = FiH.AddScaled(st.Weight, sc)
				Pij = Pij.AddScaled(st.Weight, sc)
				if desc.HaveSourceTerms() {
					contribution := desc.HighOrderSource(st.Prec, j, st.U[j], t, tau)
					FiH = FiH.AddScaled(st.Weight*mij, contribution)
					Pij = Pij.AddScaled(st.Weight*mij, contribution)
				}
			}

			s.pij[e] = Pij
		}

		if !desc.Admissible(UiNew) {
			restart.Store(true)
		}
		newU[i] = UiNew
		s.r[i] = FiH
		s.bounds[i] = limiter.Bounds(mi * measureInv)
	})

	/*
	 * Phase 5: mass-matrix correction of P_ij and the first limiter pass
	 */

	if s.opts.LimiterIterations != 0 {
		s.region(s.exchangeRows(s.lij), func(worker, i int) {
			rowLength := g.RowLength(i)
			if rowLength == 1 {
				return
			}
			var (
				limiter = limiters[worker]
				b       = s.bounds[i]
				miInv   = g.MLInv[i]
				UiNew   = newU[i]
				FiH     = s.r[i]
				factor  = tau * miInv * float64(rowLength-1)
			)
			for colIdx := 1; colIdx < rowLength; colIdx++ {
				var (
					j   = g.Col(i, colIdx)
					e   = g.Entry(i, colIdx)
					mij = g.Mij[e]
					bij = -mij * g.MLInv[j]
					bji = -mij * miInv
				)
				Pij := s.pij[e].AddScaled(bij, s.r[j]).AddScaled(-bji, FiH).Scale(factor)
				s.pij[e] = Pij

				l, success := limiter.Limit(b, UiNew, Pij)
				s.lij[e] = l

				// A low-order state outside the limiter bounds means the
				// step size was too aggressive; defer to the configured
				// violation strategy
				if !success {
					restart.Store(true)
				}
			}
		})
	}

	/*
	 * Phases 6 and 7: symmetrize l_ij, apply the limited high-order
	 * update, and compute the next l_ij for the second pass
	 */

	lijRows := make([][]float64, np)
	for n := 0; n < np; n++ {
		lijRows[n] = make([]float64, s.maxRowLength)
	}
	for pass := 0; pass < s.opts.LimiterIterations; pass++ {
		lastRound := pass+1 == s.opts.LimiterIterations

		if s.opts.LimiterIterations == 2 && lastRound {
			s.lij, s.lijNext = s.lijNext, s.lij
		}

		var payload func()
		if !lastRound {
			payload = s.exchangeRows(s.lijNext)
		}
		s.region(payload, func(worker, i int) {
			rowLength := g.RowLength(i)
			if rowLength == 1 {
				return
			}
			var (
				UiNew  = newU[i]
				lambda = 1. / float64(rowLength-1)
				lijRow = lijRows[worker]
			)
			for colIdx := 1; colIdx < rowLength; colIdx++ {
				e := g.Entry(i, colIdx)
				l := math.Min(s.lij[e], s.lij[g.TransposedEntry(i, colIdx)])
				UiNew = UiNew.AddScaled(l*lambda, s.pij[e])
				if !lastRound {
					lijRow[colIdx] = l
				}
			}
			if !desc.Admissible(UiNew) {
				restart.Store(true)
			}
			newU[i] = UiNew
			if lastRound {
				return
			}
			b := s.bounds[i]
			for colIdx := 1; colIdx < rowLength; colIdx++ {
				var (
					e    = g.Entry(i, colIdx)
					oldL = lijRow[colIdx]
					newP = s.pij[e].Scale(1. - oldL)
				)
				// Roundoff can leave the intermediate state marginally
				// outside the bounds; the limiter then returns zero and
				// the state is left alone, so no restart is signalled
				newL, _ := limiters[worker].Limit(b, UiNew, newP)

				// Store (1 - l^(1)) * l^(2); valid for at most two passes
				s.lijNext[e] = (1. - oldL) * newL
			}
		})
	}

	if s.comm.LogicalOr(restart.Load()) {
		switch s.opts.IDViolationStrategy {
		case Warn:
			s.NWarnings++
		case Raise:
			s.NRestarts++
			return tauMax, ErrRestart
		}
	}
	return tauMax, nil
}

// ApplyBoundaryConditions post-processes the boundary nodes of U at
// time t and refreshes its ghost layer.
func (s *Stepper) ApplyBoundaryConditions(U []State, t float64) {
	for _, bn := range s.g.Boundary {
		if bn.ID == graph.DoNothing || bn.Node >= s.g.NOwned {
			continue
		}
		var (
			pos       = bn.Position
			dirichlet = func() State { return s.InitialData(pos, t) }
		)
		U[bn.Node] = s.desc.ApplyBoundaryCondition(bn.ID, U[bn.Node], bn.Normal, dirichlet)
	}
	s.ExchangeStates(U)
}

func (s *Stepper) exchangePrecomputed() func() {
	s.channel++
	tag := s.channel
	return func() {
		s.ex.StartPrecomputed(tag, s.prec)
		s.ex.Finish(tag)
	}
}

func (s *Stepper) exchangeAlpha() func() {
	s.channel++
	tag := s.channel
	return func() {
		s.ex.StartFloats(tag, s.alpha)
		s.ex.Finish(tag)
	}
}

func (s *Stepper) exchangeResidual() func() {
	s.channel++
	tag := s.channel
	return func() {
		s.ex.StartStates(tag, s.r)
		s.ex.Finish(tag)
	}
}

func (s *Stepper) exchangeRows(edge []float64) func() {
	s.channel++
	tag := s.channel
	return func() {
		s.ex.StartRows(tag, edge)
		s.ex.Finish(tag)
	}
}
