// Package euler implements the compressible Euler equations of gas
// dynamics with a polytropic equation of state, closed by Guermond and
// Popov's exact two-state Riemann wave speed bound and a density and
// minimum-entropy convex limiter.
package euler

import (
	"fmt"
	"math"

	"github.com/hypgraph/hypgraph/hyperbolic"
)

// Description carries the parametrization of the gas: the ratio of
// specific heats. The conserved state is [rho, m_x, m_y, E].
type Description struct {
	Gamma float64
}

func New(gamma float64) *Description {
	if gamma <= 1. {
		panic(fmt.Errorf("ratio of specific heats must exceed 1, have %v", gamma))
	}
	return &Description{Gamma: gamma}
}

func (d *Description) Name() string       { return "euler" }
func (d *Description) NumComponents() int { return 4 }

func Momentum(U hyperbolic.State) [2]float64 {
	return [2]float64{U[1], U[2]}
}

// InternalEnergy returns the internal energy density rho*e.
func InternalEnergy(U hyperbolic.State) float64 {
	return U[3] - 0.5*(U[1]*U[1]+U[2]*U[2])/U[0]
}

func (d *Description) Pressure(U hyperbolic.State) float64 {
	return (d.Gamma - 1.) * InternalEnergy(U)
}

func (d *Description) SpeedOfSound(U hyperbolic.State) float64 {
	return math.Sqrt(d.Gamma * d.Pressure(U) / U[0])
}

// SpecificEntropy returns s = p / rho^gamma.
func (d *Description) SpecificEntropy(U hyperbolic.State) float64 {
	return d.Pressure(U) * math.Pow(U[0], -d.Gamma)
}

// FromPrimitive converts a primitive state [rho, v_x, v_y, p] into a
// conserved state.
func (d *Description) FromPrimitive(rho, vx, vy, p float64) hyperbolic.State {
	return hyperbolic.State{
		rho,
		rho * vx,
		rho * vy,
		p/(d.Gamma-1.) + 0.5*rho*(vx*vx+vy*vy),
	}
}

// Precompute stores the specific entropy and the physical entropy
// rho * ln(s) / (gamma - 1) of one node.
func (d *Description) Precompute(U hyperbolic.State) hyperbolic.Precomputed {
	s := d.SpecificEntropy(U)
	return hyperbolic.Precomputed{s, U[0] * math.Log(s) / (d.Gamma - 1.)}
}

func (d *Description) fluxOf(U hyperbolic.State) (f hyperbolic.Flux) {
	var (
		p  = d.Pressure(U)
		vx = U[1] / U[0]
		vy = U[2] / U[0]
	)
	f[0] = [2]float64{U[1], U[2]}
	f[1] = [2]float64{U[1]*vx + p, U[1] * vy}
	f[2] = [2]float64{U[2] * vx, U[2]*vy + p}
	f[3] = [2]float64{(U[3] + p) * vx, (U[3] + p) * vy}
	return
}

func (d *Description) FluxContribution(prec []hyperbolic.Precomputed, i int, U hyperbolic.State) hyperbolic.Contribution {
	return hyperbolic.Contribution{U: U, F: d.fluxOf(U)}
}

func (d *Description) Flux(fi, fj hyperbolic.Contribution) (f hyperbolic.Flux) {
	for k := range f {
		f[k][0] = -(fi.F[k][0] + fj.F[k][0])
		f[k][1] = -(fi.F[k][1] + fj.F[k][1])
	}
	return
}

func (d *Description) HighOrderFlux(fi, fj hyperbolic.Contribution) hyperbolic.Flux {
	panic("euler: no high order flux")
}

func (d *Description) EquilibratedStates(fi, fj hyperbolic.Contribution) (hyperbolic.State, hyperbolic.State) {
	panic("euler: no equilibrated states")
}

func (d *Description) AffineShift(fi, fj hyperbolic.Contribution, cij [2]float64, dij float64) hyperbolic.State {
	panic("euler: no affine shift")
}

func (d *Description) LowOrderSource(prec []hyperbolic.Precomputed, i int, U hyperbolic.State, t, tau float64) hyperbolic.State {
	panic("euler: no source terms")
}

func (d *Description) HighOrderSource(prec []hyperbolic.Precomputed, i int, U hyperbolic.State, t, tau float64) hyperbolic.State {
	panic("euler: no source terms")
}

func (d *Description) HaveHighOrderFlux() bool      { return false }
func (d *Description) HaveEquilibratedStates() bool { return false }
func (d *Description) HaveSourceTerms() bool        { return false }

// Admissible requires positive density and positive internal energy.
func (d *Description) Admissible(U hyperbolic.State) bool {
	return U[0] > 0. && InternalEnergy(U) > 0.
}

func (d *Description) NewIndicator(prec []hyperbolic.Precomputed, evcFactor float64) hyperbolic.Indicator {
	return &indicator{d: d, prec: prec, evcFactor: evcFactor}
}

func (d *Description) NewLimiter(prec []hyperbolic.Precomputed, params hyperbolic.LimiterParameters) hyperbolic.Limiter {
	return &limiter{d: d, prec: prec, params: params}
}

var _ hyperbolic.Description = (*Description)(nil)
