package euler

import (
	"math"

	"github.com/hypgraph/hypgraph/hyperbolic"
)

// indicator measures the local entropy production of the physical
// entropy eta = rho * ln(s) / (gamma - 1): a discrete residual of the
// entropy equality, normalized to a commutator quotient in [0,1].
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
	var (
		d     = ind.d
		gamma = d.Gamma
		rho   = Ui[0]
		p     = d.Pressure(Ui)
		vx    = Ui[1] / rho
		vy    = Ui[2] / rho
		sLog  = math.Log(ind.prec[i][0])
	)
	ind.etaI = ind.prec[i][1]
	ind.dEtaI[0] = (sLog - gamma + rho*(gamma-1.)*(vx*vx+vy*vy)/(2.*p)) / (gamma - 1.)
	ind.dEtaI[1] = -Ui[1] / p
	ind.dEtaI[2] = -Ui[2] / p
	ind.dEtaI[3] = rho / p

	ind.left = 0.
	ind.right = [4]float64{}
}

func (ind *indicator) Accumulate(j int, Uj hyperbolic.State, cij [2]float64) {
	vc := (Uj[1]*cij[0] + Uj[2]*cij[1]) / Uj[0]
	ind.left += ind.prec[j][1] * vc

	f := ind.d.fluxOf(Uj)
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
