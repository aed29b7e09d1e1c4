package hyperbolic

import (
	"fmt"
	"runtime"
)

// IDViolationStrategy selects what a completed step does when a node
// left the invariant domain: count and continue, or report a restart so
// the caller can retry with a smaller step size.
type IDViolationStrategy int

const (
	Warn IDViolationStrategy = iota
	Raise
)

var StrategyNames = map[string]IDViolationStrategy{
	"warn":  Warn,
	"raise": Raise,
}

func NewIDViolationStrategy(name string) IDViolationStrategy {
	strategy, ok := StrategyNames[name]
	if !ok {
		panic(fmt.Errorf("unknown id violation strategy %q", name))
	}
	return strategy
}

// Options are the recognized knobs of the step driver.
type Options struct {
	CFL                     float64
	LimiterIterations       int
	LimiterNewtonTolerance  float64
	LimiterNewtonMaxIter    int
	LimiterRelaxationFactor float64
	IndicatorEVCFactor      float64
	CFLWithBoundaryNodes    bool
	IDViolationStrategy     IDViolationStrategy
	PrecomputeOnly          bool
	ParallelDegree          int
}

func DefaultOptions() Options {
	return Options{
		CFL:                     0.2,
		LimiterIterations:       2,
		LimiterNewtonTolerance:  1.e-10,
		LimiterNewtonMaxIter:    2,
		LimiterRelaxationFactor: 1.,
		IndicatorEVCFactor:      1.,
		CFLWithBoundaryNodes:    false,
		IDViolationStrategy:     Warn,
		ParallelDegree:          runtime.NumCPU(),
	}
}

func (o Options) Validate() {
	if o.CFL <= 0 {
		panic(fmt.Errorf("cfl must be positive, have %v", o.CFL))
	}
	// The second-pass shortcut stores (1-l^(1))*l^(2) in place of a full
	// matrix update, which is only valid for at most two passes
	if o.LimiterIterations < 0 || o.LimiterIterations > 2 {
		panic(fmt.Errorf("limiter iterations must be 0, 1 or 2, have %d", o.LimiterIterations))
	}
	if o.LimiterNewtonMaxIter < 0 {
		panic(fmt.Errorf("limiter newton max iter must be non-negative, have %d", o.LimiterNewtonMaxIter))
	}
	if o.LimiterNewtonTolerance <= 0 {
		panic(fmt.Errorf("limiter newton tolerance must be positive, have %v", o.LimiterNewtonTolerance))
	}
	if o.ParallelDegree < 1 {
		panic(fmt.Errorf("parallel degree must be at least 1, have %d", o.ParallelDegree))
	}
}

func (o Options) limiterParameters() LimiterParameters {
	return LimiterParameters{
		RelaxationFactor: o.LimiterRelaxationFactor,
		NewtonTolerance:  o.LimiterNewtonTolerance,
		NewtonMaxIter:    o.LimiterNewtonMaxIter,
	}
}
