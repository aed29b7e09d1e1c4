package shallowwater

import (
	"math"

	"github.com/hypgraph/hypgraph/hyperbolic"
)

// indicator measures the residual of the energy equality. The entropy
// flux is (eta + p) * v, so the left accumulator weighs the neighbor
// energies with the pressure added back in.
type indicator struct {
	d         *Description
	prec      []hyperbolic.Precomputed
	evcFactor float64

	etaI  float64
	dEtaI [4]float64
	left  float64
	right [4]float64
}

func (ind *indicator) Reset(i int, Ui hyperbolic.State) {
	ind.etaI = ind.prec[i][0]
	ind.dEtaI = ind.d.mathematicalEntropyDerivative(Ui)

	ind.left = 0.
	ind.right = [4]float64{}
}

func (ind *indicator) Accumulate(j int, Uj hyperbolic.State, cij [2]float64) {
	var (
		d  = ind.d
		vc = (Uj[1]*cij[0] + Uj[2]*cij[1]) * d.InverseWaterDepthSharp(Uj)
	)
	ind.left += (ind.prec[j][0] + d.Pressure(Uj)) * vc

	f := d.f(Uj)
	for k := range ind.right {
		ind.right[k] += f[k][0]*cij[0] + f[k][1]*cij[1]
	}
}

func (ind *indicator) Alpha(hd float64) float64 {
	var (
		numerator   = ind.left
		denominator = math.Abs(ind.left)
	)
	for k := range ind.right {
		numerator -= ind.dEtaI[k] * ind.right[k]
		denominator += math.Abs(ind.dEtaI[k] * ind.right[k])
	}
	quotient := math.Abs(numerator) / (denominator + hd*math.Abs(ind.etaI) + math.SmallestNonzeroFloat64)
	return math.Min(1., ind.evcFactor*quotient)
}
