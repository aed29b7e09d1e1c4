// Package shallowwater implements the Saint-Venant shallow water
// equations over variable bathymetry. The conserved state is
// [h, q_x, q_y] with water depth h and momentum q = h*v; dry states
// are handled with mollified and sharp depth inverses, and the
// well-balanced pairwise flux works on hydrostatically equilibrated
// star states.
package shallowwater

import (
	"fmt"
	"math"

	"github.com/hypgraph/hypgraph/hyperbolic"
	"github.com/hypgraph/hypgraph/utils"
)

type Description struct {
	Gravity float64

	// ReferenceWaterDepth scales the dry state cutoffs; the relaxation
	// factors set how many machine epsilons of depth count as dry.
	ReferenceWaterDepth         float64
	DryStateRelaxationSharp     float64
	DryStateRelaxationMollified float64

	bathymetry []float64
}

func New(gravity float64) *Description {
	if gravity <= 0. {
		panic(fmt.Errorf("gravity must be positive, have %v", gravity))
	}
	return &Description{
		Gravity:                     gravity,
		ReferenceWaterDepth:         1.,
		DryStateRelaxationSharp:     1.e2,
		DryStateRelaxationMollified: 1.e2,
	}
}

func (d *Description) Name() string       { return "shallow water" }
func (d *Description) NumComponents() int { return 3 }

// SetBathymetry installs the nodal bathymetry vector. Without one the
// bottom is flat at zero.
func (d *Description) SetBathymetry(z []float64) { d.bathymetry = z }

func (d *Description) hCutoffMollified() float64 {
	return d.ReferenceWaterDepth * d.DryStateRelaxationMollified * utils.Eps
}

func (d *Description) hCutoffSharp() float64 {
	return d.ReferenceWaterDepth * d.DryStateRelaxationSharp * utils.Eps
}

// InverseWaterDepthMollified is a regularized 1/h that decays to zero
// for dry states instead of blowing up.
func (d *Description) InverseWaterDepthMollified(U hyperbolic.State) float64 {
	var (
		h    = U[0]
		hMax = math.Max(h, d.hCutoffMollified())
	)
	return 2. * utils.PositivePart(h) / (h*h + hMax*hMax)
}

// InverseWaterDepthSharp is 1/h with the depth cut off from below.
func (d *Description) InverseWaterDepthSharp(U hyperbolic.State) float64 {
	return 1. / math.Max(U[0], d.hCutoffSharp())
}

// FilterDryWaterDepth flushes depths below the dry state cutoff to
// zero.
func (d *Description) FilterDryWaterDepth(h float64) float64 {
	if math.Abs(h) < d.hCutoffMollified() {
		return 0.
	}
	return h
}

func (d *Description) KineticEnergy(U hyperbolic.State) float64 {
	return 0.5 * (U[1]*U[1] + U[2]*U[2]) * d.InverseWaterDepthSharp(U)
}

func (d *Description) Pressure(U hyperbolic.State) float64 {
	return 0.5 * d.Gravity * U[0] * U[0]
}

func (d *Description) SpeedOfSound(U hyperbolic.State) float64 {
	return math.Sqrt(d.Gravity * utils.PositivePart(U[0]))
}

// MathematicalEntropy is the total energy 1/2 g h^2 + 1/2 h |v|^2.
func (d *Description) MathematicalEntropy(U hyperbolic.State) float64 {
	return d.Pressure(U) + d.KineticEnergy(U)
}

func (d *Description) mathematicalEntropyDerivative(U hyperbolic.State) (dEta [4]float64) {
	var (
		hInv = d.InverseWaterDepthSharp(U)
		vx   = U[1] * hInv
		vy   = U[2] * hInv
	)
	dEta[0] = d.Gravity*U[0] - 0.5*(vx*vx+vy*vy)
	dEta[1] = vx
	dEta[2] = vy
	return
}

// Admissible requires a non-negative water depth up to dry state
// filtering.
func (d *Description) Admissible(U hyperbolic.State) bool {
	return d.FilterDryWaterDepth(U[0]) >= 0.
}

// starState is the hydrostatic reconstruction of U against the
// bathymetry jump from zLeft to zRight.
func (d *Description) starState(U hyperbolic.State, zLeft, zRight float64) hyperbolic.State {
	ratio := math.Max(0., U[0]+zLeft-math.Max(zLeft, zRight)) * d.InverseWaterDepthMollified(U)
	return U.Scale(ratio)
}

// f is the full directional flux including the hydrostatic pressure.
func (d *Description) f(U hyperbolic.State) (f hyperbolic.Flux) {
	f = d.g(U)
	p := d.Pressure(U)
	f[1][0] += p
	f[2][1] += p
	return
}

// g is the advective flux without the pressure contribution.
func (d *Description) g(U hyperbolic.State) (f hyperbolic.Flux) {
	var (
		hInv = d.InverseWaterDepthSharp(U)
		vx   = U[1] * hInv
		vy   = U[2] * hInv
	)
	f[0] = [2]float64{U[1], U[2]}
	f[1] = [2]float64{U[1] * vx, U[1] * vy}
	f[2] = [2]float64{U[2] * vx, U[2] * vy}
	return
}

func (d *Description) Precompute(U hyperbolic.State) hyperbolic.Precomputed {
	return hyperbolic.Precomputed{d.MathematicalEntropy(U), 0.}
}

func (d *Description) FluxContribution(prec []hyperbolic.Precomputed, i int, U hyperbolic.State) hyperbolic.Contribution {
	c := hyperbolic.Contribution{U: U}
	if d.bathymetry != nil {
		c.B = d.bathymetry[i]
	}
	return c
}

func (d *Description) EquilibratedStates(fi, fj hyperbolic.Contribution) (hyperbolic.State, hyperbolic.State) {
	return d.starState(fi.U, fi.B, fj.B), d.starState(fj.U, fj.B, fi.B)
}

// Flux is the well-balanced low-order flux: the advective flux of the
// equilibrated states plus a symmetrized pressure built from the
// unstarred depths.
func (d *Description) Flux(fi, fj hyperbolic.Contribution) (f hyperbolic.Flux) {
	var (
		starIJ, starJI = d.EquilibratedStates(fi, fj)
		gIJ            = d.g(starIJ)
		gJI            = d.g(starJI)
		pressure       = d.Gravity * fi.U[0] * fj.U[0]
	)
	for k := range f {
		f[k][0] = -(gIJ[k][0] + gJI[k][0])
		f[k][1] = -(gIJ[k][1] + gJI[k][1])
	}
	f[1][0] -= pressure
	f[2][1] -= pressure
	return
}

// HighOrderFlux drops the hydrostatic reconstruction and works on the
// states themselves.
func (d *Description) HighOrderFlux(fi, fj hyperbolic.Contribution) (f hyperbolic.Flux) {
	var (
		gI       = d.g(fi.U)
		gJ       = d.g(fj.U)
		pressure = d.Gravity * fi.U[0] * fj.U[0]
	)
	for k := range f {
		f[k][0] = -(gI[k][0] + gJ[k][0])
		f[k][1] = -(gI[k][1] + gJ[k][1])
	}
	f[1][0] -= pressure
	f[2][1] -= pressure
	return
}

// AffineShift translates the limiter bar states into the frame of the
// hydrostatically reconstructed update.
func (d *Description) AffineShift(fi, fj hyperbolic.Contribution, cij [2]float64, dij float64) hyperbolic.State {
	starIJ, _ := d.EquilibratedStates(fi, fj)
	return starIJ.Scale(-2. * dij).AddScaled(-2., hyperbolic.Contract(d.g(starIJ), cij))
}

func (d *Description) LowOrderSource(prec []hyperbolic.Precomputed, i int, U hyperbolic.State, t, tau float64) hyperbolic.State {
	panic("shallow water: no source terms")
}

func (d *Description) HighOrderSource(prec []hyperbolic.Precomputed, i int, U hyperbolic.State, t, tau float64) hyperbolic.State {
	panic("shallow water: no source terms")
}

func (d *Description) HaveHighOrderFlux() bool      { return true }
func (d *Description) HaveEquilibratedStates() bool { return true }
func (d *Description) HaveSourceTerms() bool        { return false }

func (d *Description) NewIndicator(prec []hyperbolic.Precomputed, evcFactor float64) hyperbolic.Indicator {
	return &indicator{d: d, prec: prec, evcFactor: evcFactor}
}

func (d *Description) NewLimiter(prec []hyperbolic.Precomputed, params hyperbolic.LimiterParameters) hyperbolic.Limiter {
	return &limiter{d: d, prec: prec, params: params}
}

var _ hyperbolic.Description = (*Description)(nil)
