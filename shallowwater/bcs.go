package shallowwater

import (
	"github.com/hypgraph/hypgraph/graph"
	"github.com/hypgraph/hypgraph/hyperbolic"
	"github.com/hypgraph/hypgraph/utils"
)

// prescribeRiemannCharacteristic rebuilds U from its own Riemann
// invariants with the selected characteristic (1 for v*n - 2a entering,
// 2 for v*n + 2a) replaced by the one carried by UBar. The tangential
// velocity is taken from U.
func (d *Description) prescribeRiemannCharacteristic(component int, U, UBar hyperbolic.State, normal [2]float64) hyperbolic.State {
	var (
		hInv = d.InverseWaterDepthSharp(U)
		vx   = U[1] * hInv
		vy   = U[2] * hInv
		vn   = vx*normal[0] + vy*normal[1]
		a    = d.SpeedOfSound(U)

		hInvBar = d.InverseWaterDepthSharp(UBar)
		vnBar   = (UBar[1]*normal[0] + UBar[2]*normal[1]) * hInvBar
		aBar    = d.SpeedOfSound(UBar)
	)

	R1 := vn - 2.*a
	if component == 1 {
		R1 = vnBar - 2.*aBar
	}
	R2 := vn + 2.*a
	if component == 2 {
		R2 = vnBar + 2.*aBar
	}

	var (
		vnNew = 0.5 * (R1 + R2)
		hNew  = utils.POW((R2-R1)/4., 2) / d.Gravity

		vxNew = vnNew*normal[0] + (vx - vn*normal[0])
		vyNew = vnNew*normal[1] + (vy - vn*normal[1])
	)
	return hyperbolic.State{hNew, hNew * vxNew, hNew * vyNew}
}

func (d *Description) ApplyBoundaryCondition(id graph.BoundaryID, U hyperbolic.State, normal [2]float64, dirichlet func() hyperbolic.State) hyperbolic.State {
	switch id {
	case graph.Dirichlet:
		return dirichlet()

	case graph.Slip:
		qn := U[1]*normal[0] + U[2]*normal[1]
		U[1] -= qn * normal[0]
		U[2] -= qn * normal[1]
		return U

	case graph.NoSlip:
		U[1] = 0.
		U[2] = 0.
		return U

	case graph.Dynamic:
		// Classify the flow state at the boundary node: supercritical
		// inflow takes the full Dirichlet data, subcritical in/outflow
		// prescribes one incoming Riemann characteristic, supercritical
		// outflow is left alone.
		var (
			vn = (U[1]*normal[0] + U[2]*normal[1]) * d.InverseWaterDepthSharp(U)
			a  = d.SpeedOfSound(U)
		)
		switch {
		case vn < -a:
			return dirichlet()
		case vn <= 0.:
			return d.prescribeRiemannCharacteristic(2, dirichlet(), U, normal)
		case vn <= a:
			return d.prescribeRiemannCharacteristic(1, U, dirichlet(), normal)
		}
		return U
	}
	return U
}
