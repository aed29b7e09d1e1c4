package euler

import (
	"math"

	"github.com/hypgraph/hypgraph/graph"
	"github.com/hypgraph/hypgraph/hyperbolic"
)

// prescribeRiemannCharacteristic rebuilds U from its own Riemann
// invariants with the selected characteristic (1 for v*n - 2a/(gamma-1)
// entering, 2 for v*n + 2a/(gamma-1)) replaced by the one carried by
// UBar. The entropy and the tangential velocity are taken from U.
func (d *Description) prescribeRiemannCharacteristic(component int, U, UBar hyperbolic.State, normal [2]float64) hyperbolic.State {
	var (
		gamma = d.Gamma

		rho = U[0]
		vx  = U[1] / rho
		vy  = U[2] / rho
		vn  = vx*normal[0] + vy*normal[1]
		a   = d.SpeedOfSound(U)

		rhoBar = UBar[0]
		vnBar  = (UBar[1]*normal[0] + UBar[2]*normal[1]) / rhoBar
		aBar   = d.SpeedOfSound(UBar)
	)

	R1 := vn - 2.*a/(gamma-1.)
	if component == 1 {
		R1 = vnBar - 2.*aBar/(gamma-1.)
	}
	R2 := vn + 2.*a/(gamma-1.)
	if component == 2 {
		R2 = vnBar + 2.*aBar/(gamma-1.)
	}

	var (
		s     = d.SpecificEntropy(U)
		vnNew = 0.5 * (R1 + R2)
		aNew  = 0.25 * (gamma - 1.) * (R2 - R1)

		rhoNew = math.Pow(aNew*aNew/(gamma*s), 1./(gamma-1.))
		pNew   = aNew * aNew * rhoNew / gamma

		vxNew = vnNew*normal[0] + (vx - vn*normal[0])
		vyNew = vnNew*normal[1] + (vy - vn*normal[1])
	)
	return d.FromPrimitive(rhoNew, vxNew, vyNew, pNew)
}

func (d *Description) ApplyBoundaryCondition(id graph.BoundaryID, U hyperbolic.State, normal [2]float64, dirichlet func() hyperbolic.State) hyperbolic.State {
	switch id {
	case graph.Dirichlet:
		return dirichlet()

	case graph.Slip:
		mn := U[1]*normal[0] + U[2]*normal[1]
		U[1] -= mn * normal[0]
		U[2] -= mn * normal[1]
		return U

	case graph.NoSlip:
		U[1] = 0.
		U[2] = 0.
		return U

	case graph.Dynamic:
		// Classify the flow state at the boundary node and fall back to
		// the appropriate condition: supersonic inflow takes the full
		// Dirichlet data, subsonic in/outflow prescribes one incoming
		// Riemann characteristic, supersonic outflow is left alone.
		var (
			vn = (U[1]*normal[0] + U[2]*normal[1]) / U[0]
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
