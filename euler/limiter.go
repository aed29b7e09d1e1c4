package euler

import (
	"math"

	"github.com/hypgraph/hypgraph/hyperbolic"
	"github.com/hypgraph/hypgraph/utils"
)

// limiter enforces local bounds on the density and a local minimum
// principle on the specific entropy. The bounds tuple of one node is
// (rho_min, rho_max, s_min, unused), accumulated from the low-order bar
// states of the stencil and relaxed towards second order away from
// shocks.
type limiter struct {
	d      *Description
	prec   []hyperbolic.Precomputed
	params hyperbolic.LimiterParameters

	uI hyperbolic.State
	fI hyperbolic.Flux

	rhoMin, rhoMax, sMin     float64
	rhoRelaxNum, rhoRelaxDen float64
	sInterpMax               float64
}

func (l *limiter) Reset(i int, Ui hyperbolic.State, fi hyperbolic.Contribution) {
	l.uI = Ui
	l.fI = fi.F

	l.rhoMin = Ui[0]
	l.rhoMax = Ui[0]
	l.sMin = l.prec[i][0]

	l.rhoRelaxNum = 0.
	l.rhoRelaxDen = 0.
	l.sInterpMax = 0.
}

func (l *limiter) Accumulate(j int, Uj hyperbolic.State, fj hyperbolic.Contribution, UStarIJ, UStarJI hyperbolic.State, scaledCij [2]float64, betaij float64, shift hyperbolic.State) {
	var diff hyperbolic.Flux
	for k := range diff {
		diff[k][0] = fj.F[k][0] - l.fI[k][0]
		diff[k][1] = fj.F[k][1] - l.fI[k][1]
	}
	q := hyperbolic.Contract(diff, scaledCij)

	var bar hyperbolic.State
	for k := range bar {
		bar[k] = 0.5*(UStarIJ[k]+UStarJI[k]) - 0.5*q[k]
	}

	l.rhoMin = math.Min(l.rhoMin, bar[0])
	l.rhoMax = math.Max(l.rhoMax, bar[0])
	l.sMin = math.Min(l.sMin, l.prec[j][0])

	l.rhoRelaxNum += betaij * (l.uI[0] + Uj[0])
	l.rhoRelaxDen += math.Abs(betaij)

	sInterp := l.d.SpecificEntropy(l.uI.Add(Uj).Scale(0.5))
	l.sInterpMax = math.Max(l.sInterpMax, sInterp)
}

func (l *limiter) Bounds(hd float64) hyperbolic.Bounds {
	var (
		rI       = l.params.RelaxationFactor * math.Pow(hd, 1.5)
		rhoRelax = math.Abs(l.rhoRelaxNum) / (math.Abs(l.rhoRelaxDen) + math.SmallestNonzeroFloat64)

		rhoMin = math.Max((1.-rI)*l.rhoMin, l.rhoMin-2.*rhoRelax)
		rhoMax = math.Min((1.+rI)*l.rhoMax, l.rhoMax+2.*rhoRelax)
		sMin   = math.Max((1.-rI)*l.sMin, 2.*l.sMin-l.sInterpMax)
	)
	return hyperbolic.Bounds{rhoMin, rhoMax, sMin, 0.}
}

// psi is the entropy surrogate (gamma-1)*(rho E - 1/2 |m|^2) -
// s_min * rho^(gamma+1), positive iff s(U + t P) exceeds s_min. The
// small relaxation on the first term keeps Newton from stalling on
// states that satisfy the bound up to roundoff.
func (l *limiter) psi(sMin, relax, t float64, U, P hyperbolic.State) (p, dp float64) {
	var (
		gamma = l.d.Gamma

		rho = U[0] + t*P[0]
		mx  = U[1] + t*P[1]
		my  = U[2] + t*P[2]
		E   = U[3] + t*P[3]

		rhoGamma = math.Pow(rho, gamma)
	)
	p = relax*(gamma-1.)*(rho*E-0.5*(mx*mx+my*my)) - sMin*rho*rhoGamma
	dp = (gamma-1.)*(P[0]*E+rho*P[3]-(mx*P[1]+my*P[2])) - (gamma+1.)*sMin*rhoGamma*P[0]
	return
}

func (l *limiter) Limit(b hyperbolic.Bounds, U, P hyperbolic.State) (float64, bool) {
	var (
		rhoMin, rhoMax, sMin = b[0], b[1], b[2]

		success    = true
		tL, tR     = 0., 1.
		relax      = 1. + 1.e4*utils.Eps
		relaxSmall = 1. + 1.e2*utils.Eps
	)

	// Density bounds have a closed form solution.
	var (
		rhoU        = U[0]
		rhoP        = P[0]
		denominator = 1. / (math.Abs(rhoP) + utils.Eps*rhoMax + math.SmallestNonzeroFloat64)
	)
	if rhoU+tR*rhoP > rhoMax {
		tR = math.Abs(rhoMax-rhoU) * denominator
	}
	if rhoU+tR*rhoP < rhoMin {
		tR = math.Abs(rhoU-rhoMin) * denominator
	}
	tR = math.Min(math.Max(tR, tL), 1.)

	if newRho := rhoU + tR*rhoP; newRho < (2.-relax)*rhoMin || newRho > relax*rhoMax {
		success = false
	}

	// Minimum entropy principle: a quasiconcave constraint, solved with
	// a bracketed quadratic Newton iteration.
	psiR, dpsiR := l.psi(sMin, relaxSmall, tR, U, P)
	if psiR >= 0. {
		return tR, success
	}
	psiL, dpsiL := l.psi(sMin, relaxSmall, tL, U, P)
	if psiL < (1.-relax)*math.Abs(sMin)*math.Pow(rhoU, l.d.Gamma+1.)-utils.Eps {
		success = false
	}
	for n := 0; n < l.params.NewtonMaxIter; n++ {
		if tR-tL <= l.params.NewtonTolerance {
			break
		}
		tL, tR = utils.QuadraticNewtonStep(tL, tR, psiL, psiR, dpsiL, dpsiR, -1.)
		psiL, dpsiL = l.psi(sMin, relaxSmall, tL, U, P)
		psiR, dpsiR = l.psi(sMin, relaxSmall, tR, U, P)
	}
	return tL, success
}
