package hyperbolic

import "fmt"

// SSPRK33 is the three-stage, third-order strong-stability-preserving
// Runge-Kutta scheme of Shu and Osher, expressed as convex combinations
// of forward-Euler steps so every stage inherits the invariant-domain
// property of the underlying update.
//
// When the stepper reports an invariant-domain violation (strategy
// Raise) the whole multi-stage step is redone with a halved step size,
// up to MaxRestarts attempts.
type SSPRK33 struct {
	s      *Stepper
	u1, u2 []State

	MaxRestarts int
}

func NewSSPRK33(s *Stepper) *SSPRK33 {
	n := s.Graph().NNodes
	return &SSPRK33{
		s:           s,
		u1:          make([]State, n),
		u2:          make([]State, n),
		MaxRestarts: 5,
	}
}

// Step advances U in place from time t and returns the step size taken.
// The first attempt lets the stepper pick the maximal admissible step
// size; every stage of one attempt then reuses that size.
func (rk *SSPRK33) Step(U []State, t float64) (tau float64, err error) {
	var (
		s         = rk.s
		nOwned    = s.Graph().NOwned
		requested = 0.
	)
	for attempt := 0; ; attempt++ {
		var tauMax float64
		tauMax, err = s.Step(U, nil, rk.u1, requested)
		tau = requested
		if tau == 0. {
			tau = tauMax
		}
		if err == nil {
			s.ApplyBoundaryConditions(rk.u1, t+tau)

			_, err = s.Step(rk.u1, nil, rk.u2, tau)
		}
		if err == nil {
			for i := 0; i < nOwned; i++ {
				rk.u2[i] = U[i].Scale(3. / 4.).AddScaled(1./4., rk.u2[i])
			}
			s.ApplyBoundaryConditions(rk.u2, t+tau/2.)

			_, err = s.Step(rk.u2, nil, rk.u1, tau)
		}
		if err == nil {
			for i := 0; i < nOwned; i++ {
				U[i] = U[i].Scale(1. / 3.).AddScaled(2./3., rk.u1[i])
			}
			s.ApplyBoundaryConditions(U, t+tau)
			return tau, nil
		}
		if err != ErrRestart || attempt >= rk.MaxRestarts {
			return 0., fmt.Errorf("time step at t=%v failed: %w", t, err)
		}
		requested = tau / 2.
	}
}
