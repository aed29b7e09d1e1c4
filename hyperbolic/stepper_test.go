package hyperbolic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hypgraph/hypgraph/graph"
)

// advectDesc is a one-component linear advection system with unit
// velocity in x, just enough physics to drive the step machinery.
type advectDesc struct {
	alphaVal float64
}

func (d advectDesc) Name() string       { return "advect" }
func (d advectDesc) NumComponents() int { return 1 }

func (d advectDesc) Precompute(U State) Precomputed { return Precomputed{} }

func (d advectDesc) FluxContribution(prec []Precomputed, i int, U State) Contribution {
	return Contribution{U: U, F: Flux{{U[0], 0}}}
}

func (d advectDesc) Flux(fi, fj Contribution) (f Flux) {
	f[0][0] = -(fi.F[0][0] + fj.F[0][0])
	return
}

func (d advectDesc) HighOrderFlux(fi, fj Contribution) Flux { panic("not available") }
func (d advectDesc) EquilibratedStates(fi, fj Contribution) (State, State) {
	panic("not available")
}
func (d advectDesc) AffineShift(fi, fj Contribution, cij [2]float64, dij float64) State {
	panic("not available")
}
func (d advectDesc) LowOrderSource(prec []Precomputed, i int, U State, t, tau float64) State {
	panic("not available")
}
func (d advectDesc) HighOrderSource(prec []Precomputed, i int, U State, t, tau float64) State {
	panic("not available")
}

func (d advectDesc) MaxWaveSpeed(Ui, Uj State, n [2]float64) float64 { return 1. }
func (d advectDesc) Admissible(U State) bool                         { return true }

func (d advectDesc) ApplyBoundaryCondition(id graph.BoundaryID, U State, normal [2]float64, dirichlet func() State) State {
	if id == graph.Dirichlet {
		return dirichlet()
	}
	return U
}

func (d advectDesc) HaveHighOrderFlux() bool      { return false }
func (d advectDesc) HaveEquilibratedStates() bool { return false }
func (d advectDesc) HaveSourceTerms() bool        { return false }

func (d advectDesc) NewIndicator(prec []Precomputed, evcFactor float64) Indicator {
	return &fixedIndicator{val: d.alphaVal}
}

func (d advectDesc) NewLimiter(prec []Precomputed, params LimiterParameters) Limiter {
	return &minmaxLimiter{}
}

type fixedIndicator struct{ val float64 }

func (f *fixedIndicator) Reset(i int, Ui State)                    {}
func (f *fixedIndicator) Accumulate(j int, Uj State, c [2]float64) {}
func (f *fixedIndicator) Alpha(hd float64) float64                 { return f.val }

// minmaxLimiter enforces the local bar state minimum and maximum of the
// single conserved component.
type minmaxLimiter struct {
	fI       Flux
	uI       float64
	min, max float64
}

func (l *minmaxLimiter) Reset(i int, Ui State, fi Contribution) {
	l.uI = Ui[0]
	l.fI = fi.F
	l.min, l.max = Ui[0], Ui[0]
}

func (l *minmaxLimiter) Accumulate(j int, Uj State, fj Contribution, UStarIJ, UStarJI State, scaledCij [2]float64, betaij float64, shift State) {
	bar := 0.5*(UStarIJ[0]+UStarJI[0]) - 0.5*(fj.F[0][0]-l.fI[0][0])*scaledCij[0]
	l.min = math.Min(l.min, bar)
	l.max = math.Max(l.max, bar)
}

func (l *minmaxLimiter) Bounds(hd float64) Bounds { return Bounds{l.min, l.max} }

func (l *minmaxLimiter) Limit(b Bounds, U, P State) (float64, bool) {
	var (
		t           = 1.
		denominator = 1. / (math.Abs(P[0]) + math.SmallestNonzeroFloat64)
	)
	if U[0]+t*P[0] > b[1] {
		t = (b[1] - U[0]) * denominator
	}
	if U[0]+t*P[0] < b[0] {
		t = (U[0] - b[0]) * denominator
	}
	t = math.Min(math.Max(t, 0.), 1.)
	success := U[0] >= b[0]-1.e-10 && U[0] <= b[1]+1.e-10
	return t, success
}

// failLimiter reports a bounds violation on every edge.
type failLimiter struct{ minmaxLimiter }

func (l *failLimiter) Limit(b Bounds, U, P State) (float64, bool) { return 0., false }

type failingDesc struct{ advectDesc }

func (failingDesc) NewLimiter(prec []Precomputed, params LimiterParameters) Limiter {
	return &failLimiter{}
}

func testOptions() Options {
	o := DefaultOptions()
	o.ParallelDegree = 2
	return o
}

func ringStepper(n int, desc Description, opts Options) *Stepper {
	var (
		h        = 1. / float64(n)
		g        = graph.NewRingGraph(n, h)
		ex, comm = SingleRank()
	)
	return NewStepper(g, desc, opts, ex, comm)
}

func sinData(g *graph.Graph) []State {
	u := make([]State, g.NNodes)
	for i := range u {
		u[i][0] = 1.5 + math.Sin(2.*math.Pi*float64(i)/float64(g.NNodes))
	}
	return u
}

func stepData(g *graph.Graph) []State {
	u := make([]State, g.NNodes)
	for i := range u {
		if i < g.NNodes/2 {
			u[i][0] = 1.
		}
	}
	return u
}

func massOf(g *graph.Graph, u []State) (m float64) {
	for i := 0; i < g.NOwned; i++ {
		m += g.ML[i] * u[i][0]
	}
	return
}

func TestStepTauFormula(t *testing.T) {
	var (
		n    = 16
		s    = ringStepper(n, advectDesc{}, testOptions())
		u    = sinData(s.Graph())
		uNew = make([]State, len(u))
	)
	tauMax, err := s.Step(u, nil, uNew, 0.)
	assert.NoError(t, err)

	// On the ring every off-diagonal d_ij is |c_ij| * lambda = 1/2, so
	// the row sum is -1 and tau = cfl * m_i / 2
	h := 1. / float64(n)
	assert.True(t, near(0.2*h/2., tauMax))
}

func TestStepViscositySymmetry(t *testing.T) {
	var (
		s    = ringStepper(12, advectDesc{}, testOptions())
		u    = sinData(s.Graph())
		uNew = make([]State, len(u))
		g    = s.Graph()
	)
	_, err := s.Step(u, nil, uNew, 0.)
	assert.NoError(t, err)

	// The graph viscosity is symmetric and its diagonal carries the
	// negated row sum
	for i := 0; i < g.NOwned; i++ {
		var sum float64
		for colIdx := 1; colIdx < g.RowLength(i); colIdx++ {
			e := g.Entry(i, colIdx)
			assert.True(t, near(s.dij[e], s.dij[g.TransposedEntry(i, colIdx)]))
			sum += s.dij[e]
		}
		assert.True(t, near(-sum, s.dij[g.Entry(i, 0)]))
	}
}

func TestStepConservation(t *testing.T) {
	var (
		s    = ringStepper(24, advectDesc{alphaVal: 1.}, testOptions())
		u    = sinData(s.Graph())
		uNew = make([]State, len(u))
	)
	before := massOf(s.Graph(), u)
	_, err := s.Step(u, nil, uNew, 0.)
	assert.NoError(t, err)
	assert.True(t, math.Abs(massOf(s.Graph(), uNew)-before) < 1.e-12)
}

func TestStepLowOrderMaxPrinciple(t *testing.T) {
	var (
		opts = testOptions()
		s    *Stepper
	)
	opts.LimiterIterations = 0
	s = ringStepper(32, advectDesc{}, opts)

	var (
		u    = stepData(s.Graph())
		uNew = make([]State, len(u))
	)
	before := massOf(s.Graph(), u)
	_, err := s.Step(u, nil, uNew, 0.)
	assert.NoError(t, err)

	// The low-order update is a convex combination of bar states and
	// cannot leave the range of the data
	for i := range uNew {
		assert.True(t, uNew[i][0] >= -1.e-12)
		assert.True(t, uNew[i][0] <= 1.+1.e-12)
	}
	assert.True(t, math.Abs(massOf(s.Graph(), uNew)-before) < 1.e-12)
}

func TestStepLimitedStaysInBounds(t *testing.T) {
	var (
		s    = ringStepper(32, advectDesc{alphaVal: 1.}, testOptions())
		u    = stepData(s.Graph())
		uNew = make([]State, len(u))
	)
	_, err := s.Step(u, nil, uNew, 0.)
	assert.NoError(t, err)
	for i := range uNew {
		assert.True(t, uNew[i][0] >= -1.e-10)
		assert.True(t, uNew[i][0] <= 1.+1.e-10)
	}
}

func TestStepPrecomputeOnly(t *testing.T) {
	var (
		opts = testOptions()
		s    *Stepper
	)
	opts.PrecomputeOnly = true
	s = ringStepper(8, advectDesc{}, opts)

	var (
		u    = sinData(s.Graph())
		uNew = make([]State, len(u))
	)
	tauMax, err := s.Step(u, nil, uNew, 0.)
	assert.NoError(t, err)
	assert.Equal(t, 0., tauMax)
}

func TestStepRequestedTau(t *testing.T) {
	var (
		s     = ringStepper(16, advectDesc{}, testOptions())
		u     = sinData(s.Graph())
		uNew1 = make([]State, len(u))
		uNew2 = make([]State, len(u))
	)
	tauMax, err := s.Step(u, nil, uNew1, 0.)
	assert.NoError(t, err)

	// Requesting half the admissible step produces a different state
	// but reports the same maximum
	tauMax2, err := s.Step(u, nil, uNew2, tauMax/2.)
	assert.NoError(t, err)
	assert.True(t, near(tauMax, tauMax2))
	assert.False(t, near(uNew1[3][0], uNew2[3][0]))
}

func TestStepStageConsistency(t *testing.T) {
	// Feeding the current state back in as a stage splits the high-order
	// residual weight without changing the update
	var (
		s     = ringStepper(16, advectDesc{alphaVal: 1.}, testOptions())
		u     = sinData(s.Graph())
		uNew1 = make([]State, len(u))
		uNew2 = make([]State, len(u))

		stages = []Stage{{U: u, Prec: make([]Precomputed, len(u)), Weight: 0.5}}
	)
	tau1, err := s.Step(u, nil, uNew1, 0.)
	assert.NoError(t, err)
	tau2, err := s.Step(u, stages, uNew2, 0.)
	assert.NoError(t, err)

	assert.True(t, near(tau1, tau2))
	for i := range uNew1 {
		assert.True(t, near(uNew1[i][0], uNew2[i][0]))
	}
}

func TestStepViolationStrategies(t *testing.T) {
	var (
		opts = testOptions()
		s    = ringStepper(16, failingDesc{}, opts)
		u    = sinData(s.Graph())
		uNew = make([]State, len(u))
	)
	// Warn counts and continues
	_, err := s.Step(u, nil, uNew, 0.)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.NWarnings)

	// Raise reports a restart
	opts.IDViolationStrategy = Raise
	s = ringStepper(16, failingDesc{}, opts)
	tauMax, err := s.Step(u, nil, uNew, 0.)
	assert.Equal(t, ErrRestart, err)
	assert.True(t, tauMax > 0.)
	assert.Equal(t, 1, s.NRestarts)
}

func TestStepPanicsOnLengthMismatch(t *testing.T) {
	s := ringStepper(8, advectDesc{}, testOptions())
	assert.Panics(t, func() {
		s.Step(make([]State, 3), nil, make([]State, 8), 0.)
	})
}

func TestOptionsValidate(t *testing.T) {
	assert.Panics(t, func() {
		o := DefaultOptions()
		o.LimiterIterations = 3
		o.Validate()
	})
	assert.Panics(t, func() {
		o := DefaultOptions()
		o.CFL = 0.
		o.Validate()
	})
	assert.Panics(t, func() { NewIDViolationStrategy("abort") })
	assert.Equal(t, Raise, NewIDViolationStrategy("raise"))
}

func TestSSPRK33Advection(t *testing.T) {
	var (
		s    = ringStepper(32, advectDesc{alphaVal: 1.}, testOptions())
		rk   = NewSSPRK33(s)
		u    = sinData(s.Graph())
		time = 0.
	)
	before := massOf(s.Graph(), u)
	for n := 0; n < 5; n++ {
		tau, err := rk.Step(u, time)
		assert.NoError(t, err)
		assert.True(t, tau > 0.)
		time += tau
	}
	assert.True(t, math.Abs(massOf(s.Graph(), u)-before) < 1.e-11)
	for i := range u {
		assert.True(t, u[i][0] >= 0.5-1.e-8)
		assert.True(t, u[i][0] <= 2.5+1.e-8)
	}
}

func TestSSPRK33RestartExhaustion(t *testing.T) {
	var (
		opts = testOptions()
		s    *Stepper
	)
	opts.IDViolationStrategy = Raise
	s = ringStepper(16, failingDesc{}, opts)

	var (
		rk = NewSSPRK33(s)
		u  = sinData(s.Graph())
	)
	_, err := rk.Step(u, 0.)
	assert.Error(t, err)
	assert.True(t, s.NRestarts > 1)
}

func near(a, b float64) (l bool) {
	bound := 1.e-8 * math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	if math.Abs(a-b) <= bound {
		l = true
	}
	return
}
