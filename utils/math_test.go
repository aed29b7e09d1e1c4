package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPOW(t *testing.T) {
	x := 1.7
	for pp := -10; pp <= 10; pp++ {
		assert.InDelta(t, math.Pow(x, float64(pp)), POW(x, pp), 1.e-12)
	}
}

func TestParts(t *testing.T) {
	assert.Equal(t, 2., PositivePart(2.))
	assert.Equal(t, 0., PositivePart(-2.))
	assert.Equal(t, 0., NegativePart(2.))
	assert.Equal(t, 2., NegativePart(-2.))
}

func TestQuadraticNewtonStep(t *testing.T) {
	// Decreasing linear psi(t) = 1 - 2t: one step lands on the root
	tl, tr := QuadraticNewtonStep(0., 1., 1., -1., -2., -2., -1.)
	assert.InDelta(t, 0.5, tl, 1.e-14)
	assert.InDelta(t, 0.5, tr, 1.e-14)

	// Increasing quadratic psi(t) = t^2 - 1/4
	tl, tr = QuadraticNewtonStep(0., 1., -0.25, 0.75, 0., 2., 1.)
	assert.InDelta(t, 0.5, tl, 1.e-14)
	assert.InDelta(t, 0.5, tr, 1.e-14)

	// Decreasing quadratic psi(t) = 1/4 - t^2
	tl, tr = QuadraticNewtonStep(0., 1., 0.25, -0.75, 0., -2., -1.)
	assert.InDelta(t, 0.5, tl, 1.e-14)
	assert.InDelta(t, 0.5, tr, 1.e-14)

	// A root beyond the bracket clamps to the right end
	tl, tr = QuadraticNewtonStep(0., 0.2, 1., 0.6, -2., -2., -1.)
	assert.InDelta(t, 0.2, tl, 1.e-14)
	assert.InDelta(t, 0.2, tr, 1.e-14)
}

func TestIsNan(t *testing.T) {
	assert.False(t, IsNan(1.))
	assert.True(t, IsNan(math.NaN()))
	assert.True(t, IsNan([]float64{0, math.NaN()}))
	assert.False(t, IsNan([4]float64{}))
	assert.Panics(t, func() { IsNanPanic(math.NaN()) })
}

func TestConstArray(t *testing.T) {
	v := ConstArray(3, 2.5)
	assert.Equal(t, []float64{2.5, 2.5, 2.5}, v)
}
