package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hypgraph/hypgraph/graph"
	"github.com/hypgraph/hypgraph/hyperbolic"
)

func TestParse(t *testing.T) {
	var (
		ip  = DefaultParameters()
		doc = `
Title: "Dam Break"
Equation: shallow_water
CFL: 0.5
FinalTime: 1.0
NodeCount: 200
Gravity: 9.81
LimiterIterations: 1
IDViolationStrategy: raise
LeftBoundary: slip
RightBoundary: dynamic
Ranks: 2
`
	)
	assert.NoError(t, ip.Parse([]byte(doc)))
	assert.Equal(t, "Dam Break", ip.Title)
	assert.Equal(t, "shallow_water", ip.Equation)
	assert.Equal(t, 0.5, ip.CFL)
	assert.Equal(t, 200, ip.NodeCount)
	assert.Equal(t, 2, ip.Ranks)

	// Unset keys keep their defaults
	assert.Equal(t, 1.4, ip.Gamma)
	assert.Equal(t, 100000, ip.MaxSteps)

	o := ip.StepperOptions()
	assert.Equal(t, 0.5, o.CFL)
	assert.Equal(t, 1, o.LimiterIterations)
	assert.Equal(t, hyperbolic.Raise, o.IDViolationStrategy)

	left, right := ip.Boundaries()
	assert.Equal(t, graph.Slip, left)
	assert.Equal(t, graph.Dynamic, right)
}

func TestBadInput(t *testing.T) {
	ip := DefaultParameters()
	ip.IDViolationStrategy = "abort"
	assert.Panics(t, func() { ip.StepperOptions() })

	ip = DefaultParameters()
	ip.LeftBoundary = "reflecting"
	assert.Panics(t, func() { ip.Boundaries() })

	ip = DefaultParameters()
	assert.Error(t, ip.Parse([]byte("Title: [unclosed")))
}
