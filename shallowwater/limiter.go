package shallowwater

import (
	"math"

	"github.com/hypgraph/hypgraph/hyperbolic"
	"github.com/hypgraph/hypgraph/utils"
)

// limiter enforces local bounds on the water depth and a local maximum
// principle on the kinetic energy. The bounds tuple of one node is
// (h_min, h_max, h_small, kin_max); h_small is the depth below which a
// node counts as dry and positivity is enforced only up to it.
type limiter struct {
	d      *Description
	prec   []hyperbolic.Precomputed
	params hyperbolic.LimiterParameters

	uI hyperbolic.State

	hMin, hMax, kinMax   float64
	hRelaxNum, hRelaxDen float64
}

func (l *limiter) Reset(i int, Ui hyperbolic.State, fi hyperbolic.Contribution) {
	l.uI = Ui

	l.hMin = Ui[0]
	l.hMax = Ui[0]
	l.kinMax = l.d.KineticEnergy(Ui)

	l.hRelaxNum = 0.
	l.hRelaxDen = 0.
}

func (l *limiter) Accumulate(j int, Uj hyperbolic.State, fj hyperbolic.Contribution, UStarIJ, UStarJI hyperbolic.State, scaledCij [2]float64, betaij float64, shift hyperbolic.State) {
	var (
		d   = l.d
		gIJ = d.g(UStarIJ)
		gJI = d.g(UStarJI)
	)
	var diff hyperbolic.Flux
	for k := range diff {
		diff[k][0] = gJI[k][0] - gIJ[k][0]
		diff[k][1] = gJI[k][1] - gIJ[k][1]
	}
	q := hyperbolic.Contract(diff, scaledCij)

	var bar hyperbolic.State
	for k := range bar {
		bar[k] = 0.5*(UStarIJ[k]+UStarJI[k]) - 0.5*q[k] + shift[k]
	}

	l.hMin = math.Min(l.hMin, bar[0])
	l.hMax = math.Max(l.hMax, bar[0])
	l.kinMax = math.Max(l.kinMax, d.KineticEnergy(bar))

	l.hRelaxNum += betaij * (l.uI[0] + Uj[0])
	l.hRelaxDen += math.Abs(betaij)
}

func (l *limiter) Bounds(hd float64) hyperbolic.Bounds {
	var (
		rI     = l.params.RelaxationFactor * math.Pow(hd, 1.5)
		hRelax = math.Abs(l.hRelaxNum) / (math.Abs(l.hRelaxDen) + math.SmallestNonzeroFloat64)

		hMin   = math.Max((1.-rI)*l.hMin, l.hMin-2.*hRelax)
		hMax   = math.Min((1.+rI)*l.hMax, l.hMax+2.*hRelax)
		kinMax = (1. + rI) * l.kinMax
	)
	return hyperbolic.Bounds{hMin, hMax, l.d.hCutoffMollified(), kinMax}
}

func (l *limiter) psi(kinMax, relax, t float64, U, P hyperbolic.State) (p, dp float64) {
	var (
		h  = U[0] + t*P[0]
		qx = U[1] + t*P[1]
		qy = U[2] + t*P[2]
	)
	p = relax*h*kinMax - 0.5*(qx*qx+qy*qy)
	dp = P[0]*kinMax - (U[1]*P[1] + U[2]*P[2]) - (P[1]*P[1]+P[2]*P[2])*t
	return
}

func (l *limiter) Limit(b hyperbolic.Bounds, U, P hyperbolic.State) (float64, bool) {
	var (
		hMin, hMax, hSmall, kinMax = b[0], b[1], b[2], b[3]

		success    = true
		tL, tR     = 0., 1.
		relax      = 1. + 1.e4*utils.Eps
		relaxSmall = 1. + 1.e2*utils.Eps
	)

	// Water depth bounds have a closed form solution.
	var (
		hU          = U[0]
		hP          = P[0]
		denominator = 1. / (math.Abs(hP) + utils.Eps*hMax + math.SmallestNonzeroFloat64)
	)
	if hU+tR*hP > hMax {
		tR = (hMax - hU) * denominator
	}
	hMinTilde := math.Max(hMin, hSmall)
	if hU+tR*hP < hMinTilde {
		tR = (hU - hMinTilde) * denominator
	}
	tR = math.Min(math.Max(tR, tL), 1.)

	if l.d.FilterDryWaterDepth(utils.PositivePart(hU-relax*hMax)) != 0. ||
		l.d.FilterDryWaterDepth(utils.PositivePart(hMin-relax*hU)) != 0. {
		success = false
	}

	// Kinetic energy maximum principle: psi(t) is concave in t, solved
	// with a bracketed quadratic Newton iteration.
	psiR, dpsiR := l.psi(kinMax, relaxSmall, tR, U, P)
	if psiR >= 0. {
		return tR, success
	}
	psiL, dpsiL := l.psi(kinMax, relaxSmall, tL, U, P)
	// The non-scaled eps keeps the lower bound negative so that perfect
	// dry states with zero depth do not trip the check.
	if psiL < (1.-relax)*l.d.FilterDryWaterDepth(hU)*kinMax-utils.Eps {
		success = false
	}
	for n := 0; n < l.params.NewtonMaxIter; n++ {
		if tR-tL <= l.params.NewtonTolerance {
			break
		}
		tL, tR = utils.QuadraticNewtonStep(tL, tR, psiL, psiR, dpsiL, dpsiR, -1.)
		psiL, dpsiL = l.psi(kinMax, relaxSmall, tL, U, P)
		psiR, dpsiR = l.psi(kinMax, relaxSmall, tR, U, P)
	}
	return tL, success
}
