package euler

import (
	"math"

	"github.com/hypgraph/hypgraph/hyperbolic"
	"github.com/hypgraph/hypgraph/utils"
)

// riemannData is the 1D projection of a state onto an edge direction:
// density, normal velocity, pressure, and speed of sound.
type riemannData struct {
	rho, u, p, a float64
}

func (d *Description) riemannData(U hyperbolic.State, n [2]float64) riemannData {
	var (
		rho = U[0]
		u   = (U[1]*n[0] + U[2]*n[1]) / rho
		p   = d.Pressure(U)
	)
	return riemannData{rho: rho, u: u, p: p, a: math.Sqrt(d.Gamma * p / rho)}
}

// pStarTwoRarefaction is the exact intermediate pressure under the
// assumption that both waves are rarefactions.
func (d *Description) pStarTwoRarefaction(i, j riemannData) float64 {
	var (
		gamma       = d.Gamma
		factor      = (gamma - 1.) / 2.
		numerator   = utils.PositivePart(i.a + j.a - factor*(j.u-i.u))
		denominator = i.a*math.Pow(i.p/j.p, -factor/gamma) + j.a
	)
	return j.p * math.Pow(numerator/denominator, 2.*gamma/(gamma-1.))
}

// pStarFailsafe is the double-shock intermediate pressure. It is always
// an upper bound on the exact p_star but is overly pessimistic in the
// expansive regime, hence the two-rarefaction estimate goes first.
func (d *Description) pStarFailsafe(i, j riemannData) float64 {
	var (
		gamma = d.Gamma
		pMax  = math.Max(i.p, j.p)

		xi = math.Sqrt(2. * pMax / (i.rho * ((gamma+1.)*pMax + (gamma-1.)*i.p)))
		xj = math.Sqrt(2. * pMax / (j.rho * ((gamma+1.)*pMax + (gamma-1.)*j.p)))

		a = xi + xj
		b = j.u - i.u
		c = -i.p*xi - j.p*xj
	)
	return utils.POW((-b+math.Sqrt(b*b-4.*a*c))/(2.*a), 2)
}

// phiOfPMax evaluates the Riemann depression function at the larger of
// the two pressures. Both terms are on the shock branch there, so only
// the (cheaper) shock expression is needed.
func (d *Description) phiOfPMax(i, j riemannData) float64 {
	var (
		gamma = d.Gamma
		pMax  = math.Max(i.p, j.p)

		radicandI = 0.5 * i.rho * ((gamma+1.)*pMax + (gamma-1.)*i.p)
		radicandJ = 0.5 * j.rho * ((gamma+1.)*pMax + (gamma-1.)*j.p)
	)
	return (pMax-i.p)/math.Sqrt(radicandI) + (pMax-j.p)/math.Sqrt(radicandJ) + j.u - i.u
}

func (d *Description) lambda1Minus(rd riemannData, pStar float64) float64 {
	factor := (d.Gamma + 1.) / (2. * d.Gamma)
	return rd.u - rd.a*math.Sqrt(1.+factor*utils.PositivePart((pStar-rd.p)/rd.p))
}

func (d *Description) lambda3Plus(rd riemannData, pStar float64) float64 {
	factor := (d.Gamma + 1.) / (2. * d.Gamma)
	return rd.u + rd.a*math.Sqrt(1.+factor*utils.PositivePart((pStar-rd.p)/rd.p))
}

func (d *Description) computeLambda(i, j riemannData, pStar float64) float64 {
	var (
		nu1 = utils.NegativePart(d.lambda1Minus(i, pStar))
		nu3 = utils.PositivePart(d.lambda3Plus(j, pStar))
	)
	return math.Max(nu1, nu3)
}

// MaxWaveSpeed bounds the maximal wave speed of the Riemann problem
// (Ui, Uj) in direction n. The bound is sharp for a p_star estimate
// that lies above the exact intermediate pressure, which holds for the
// minimum of the two-rarefaction and double-shock estimates capped at
// p_max whenever phi(p_max) is non-negative.
func (d *Description) MaxWaveSpeed(Ui, Uj hyperbolic.State, n [2]float64) float64 {
	var (
		i = d.riemannData(Ui, n)
		j = d.riemannData(Uj, n)

		pMax       = math.Max(i.p, j.p)
		pStarTilde = math.Min(d.pStarTwoRarefaction(i, j), d.pStarFailsafe(i, j))
	)
	p2 := pStarTilde
	if d.phiOfPMax(i, j) >= 0. {
		p2 = math.Min(pMax, pStarTilde)
	}
	return d.computeLambda(i, j, p2)
}
