package shallowwater

import (
	"math"

	"github.com/hypgraph/hypgraph/hyperbolic"
	"github.com/hypgraph/hypgraph/utils"
)

type riemannData struct {
	h, u, a float64
}

func (d *Description) riemannData(U hyperbolic.State, n [2]float64) riemannData {
	return riemannData{
		h: U[0],
		u: (U[1]*n[0] + U[2]*n[1]) * d.InverseWaterDepthSharp(U),
		a: d.SpeedOfSound(U),
	}
}

// hStarTwoRarefaction is the exact intermediate depth under the
// assumption that both waves are rarefactions; it bounds the exact
// intermediate depth from above in the expansive regime.
func (d *Description) hStarTwoRarefaction(i, j riemannData) float64 {
	return utils.POW(utils.PositivePart(0.5*(i.a+j.a)+0.25*(i.u-j.u)), 2) / d.Gravity
}

// lambda1Minus and lambda3Plus bound the extreme wave speeds; the
// square root factor is the shock speed correction, active only when
// the intermediate depth exceeds the local one.
func lambda1Minus(rd riemannData, hStar float64) float64 {
	var (
		h2       = math.Max(rd.h*rd.h, math.SmallestNonzeroFloat64)
		radicand = math.Max(1., (hStar+rd.h)*hStar/(2.*h2))
	)
	return rd.u - rd.a*math.Sqrt(radicand)
}

func lambda3Plus(rd riemannData, hStar float64) float64 {
	var (
		h2       = math.Max(rd.h*rd.h, math.SmallestNonzeroFloat64)
		radicand = math.Max(1., (hStar+rd.h)*hStar/(2.*h2))
	)
	return rd.u + rd.a*math.Sqrt(radicand)
}

func (d *Description) MaxWaveSpeed(Ui, Uj hyperbolic.State, n [2]float64) float64 {
	var (
		i = d.riemannData(Ui, n)
		j = d.riemannData(Uj, n)

		hStar = d.hStarTwoRarefaction(i, j)
		nu1   = utils.NegativePart(lambda1Minus(i, hStar))
		nu3   = utils.PositivePart(lambda3Plus(j, hStar))
	)
	return math.Max(nu1, nu3)
}
