package hyperbolic

// State holds the conserved quantities of one node. Systems with fewer
// than four components leave the trailing entries at zero.
type State [4]float64

// Flux is a directional flux, one [x y] pair per conserved component.
type Flux [4][2]float64

// Precomputed carries the per-node auxiliary values a physics
// description derives from the state once per step (phase 1).
type Precomputed [2]float64

// Bounds is the limiter bounds tuple of one node. Its interpretation is
// private to the physics description that produced it.
type Bounds [4]float64

func (u State) Add(v State) (w State) {
	for k := range w {
		w[k] = u[k] + v[k]
	}
	return
}

func (u State) Sub(v State) (w State) {
	for k := range w {
		w[k] = u[k] - v[k]
	}
	return
}

func (u State) Scale(s float64) (w State) {
	for k := range w {
		w[k] = s * u[k]
	}
	return
}

// AddScaled returns u + s*v.
func (u State) AddScaled(s float64, v State) (w State) {
	for k := range w {
		w[k] = u[k] + s*v[k]
	}
	return
}

// Contract applies an edge coefficient to a directional flux.
func Contract(f Flux, c [2]float64) (q State) {
	for k := range q {
		q[k] = f[k][0]*c[0] + f[k][1]*c[1]
	}
	return
}
