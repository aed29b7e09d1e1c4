package hyperbolic

import "github.com/hypgraph/hypgraph/graph"

// Contribution is the per-node quantity entering the pairwise flux
// combinations. U is the conserved state; F carries the precomputed
// directional flux for systems that work directly with fluxes; B is an
// auxiliary geometry value (the bathymetry for shallow water).
type Contribution struct {
	U State
	F Flux
	B float64
}

// LimiterParameters collects the tuning knobs handed to every
// per-worker limiter instance.
type LimiterParameters struct {
	RelaxationFactor float64
	NewtonTolerance  float64
	NewtonMaxIter    int
}

// Description is the closed physics contract the step driver operates
// against. An implementation supplies the flux structure of the system,
// a guaranteed upper bound on the maximal wave speed of the pairwise
// Riemann problem, an admissibility predicate, the boundary condition
// policy, and factories for per-worker Indicator and Limiter instances.
//
// The three capability flags switch optional structure on: systems
// without it get the generic pairwise update on plain states.
type Description interface {
	Name() string
	NumComponents() int

	// Precompute derives the per-node auxiliary values for one state.
	// Runs once per step (phase 1) over all owned nodes.
	Precompute(U State) Precomputed

	// FluxContribution assembles the per-node flux contribution from the
	// state and the precomputed vector the driver passes in.
	FluxContribution(prec []Precomputed, i int, U State) Contribution

	// Flux combines two contributions into the low-order pairwise flux.
	Flux(fi, fj Contribution) Flux

	// HighOrderFlux is consulted only when HaveHighOrderFlux is true.
	HighOrderFlux(fi, fj Contribution) Flux

	// EquilibratedStates is consulted only when HaveEquilibratedStates
	// is true. It returns the pair (U*_ij, U*_ji).
	EquilibratedStates(fi, fj Contribution) (State, State)

	// AffineShift is the per-edge contribution to the limiter's affine
	// shift, consulted only when HaveEquilibratedStates is true.
	AffineShift(fi, fj Contribution, cij [2]float64, dij float64) State

	// LowOrderSource and HighOrderSource are consulted only when
	// HaveSourceTerms is true.
	LowOrderSource(prec []Precomputed, i int, U State, t, tau float64) State
	HighOrderSource(prec []Precomputed, i int, U State, t, tau float64) State

	// MaxWaveSpeed bounds the maximal wave speed of the Riemann problem
	// with left state Ui and right state Uj in direction n.
	MaxWaveSpeed(Ui, Uj State, n [2]float64) float64

	// Admissible reports whether U lies in the invariant domain.
	Admissible(U State) bool

	// ApplyBoundaryCondition post-processes the state of one boundary
	// node. The dirichlet callback supplies externally prescribed data
	// and is only invoked for conditions that need it.
	ApplyBoundaryCondition(id graph.BoundaryID, U State, normal [2]float64, dirichlet func() State) State

	HaveHighOrderFlux() bool
	HaveEquilibratedStates() bool
	HaveSourceTerms() bool

	NewIndicator(prec []Precomputed, evcFactor float64) Indicator
	NewLimiter(prec []Precomputed, params LimiterParameters) Limiter
}

// Indicator measures the smoothness of the solution around one node and
// reduces it to a blending factor alpha in [0,1]. One instance per
// worker goroutine; Reset/Accumulate/Alpha run row by row.
type Indicator interface {
	Reset(i int, Ui State)
	Accumulate(j int, Uj State, cij [2]float64)
	Alpha(hd float64) float64
}

// Limiter accumulates local bounds over a stencil (phase 4) and limits
// candidate updates against them (phases 5-7). One instance per worker
// goroutine.
//
// For systems without equilibrated states the driver passes the plain
// pair (Ui, Uj) in the star slots and a zero affine shift.
type Limiter interface {
	Reset(i int, Ui State, fi Contribution)
	Accumulate(j int, Uj State, fj Contribution, UStarIJ, UStarJI State, scaledCij [2]float64, betaij float64, shift State)
	Bounds(hd float64) Bounds

	// Limit computes the largest l in [0,1] such that U + l*P satisfies
	// the bounds. The flag is false when U itself already violates them.
	Limit(b Bounds, U, P State) (float64, bool)
}
