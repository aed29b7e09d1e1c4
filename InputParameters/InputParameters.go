package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"

	"github.com/hypgraph/hypgraph/graph"
	"github.com/hypgraph/hypgraph/hyperbolic"
)

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title                   string  `yaml:"Title"`
	Equation                string  `yaml:"Equation"` // euler or shallow_water
	CFL                     float64 `yaml:"CFL"`
	FinalTime               float64 `yaml:"FinalTime"`
	MaxSteps                int     `yaml:"MaxSteps"`
	NodeCount               int     `yaml:"NodeCount"`
	Gamma                   float64 `yaml:"Gamma"`
	Gravity                 float64 `yaml:"Gravity"`
	LimiterIterations       int     `yaml:"LimiterIterations"`
	LimiterNewtonTolerance  float64 `yaml:"LimiterNewtonTolerance"`
	LimiterNewtonMaxIter    int     `yaml:"LimiterNewtonMaxIter"`
	LimiterRelaxationFactor float64 `yaml:"LimiterRelaxationFactor"`
	IndicatorEVCFactor      float64 `yaml:"IndicatorEVCFactor"`
	CFLWithBoundaryNodes    bool    `yaml:"CFLWithBoundaryNodes"`
	IDViolationStrategy     string  `yaml:"IDViolationStrategy"` // warn or raise
	LeftBoundary            string  `yaml:"LeftBoundary"`
	RightBoundary           string  `yaml:"RightBoundary"`
	ParallelDegree          int     `yaml:"ParallelDegree"`
	Ranks                   int     `yaml:"Ranks"`
}

// DefaultParameters mirrors the stepper defaults for a single-rank Sod
// shock tube run.
func DefaultParameters() (ip *InputParameters) {
	o := hyperbolic.DefaultOptions()
	return &InputParameters{
		Title:                   "Sod Shock Tube",
		Equation:                "euler",
		CFL:                     o.CFL,
		FinalTime:               0.25,
		MaxSteps:                100000,
		NodeCount:               400,
		Gamma:                   1.4,
		Gravity:                 9.81,
		LimiterIterations:       o.LimiterIterations,
		LimiterNewtonTolerance:  o.LimiterNewtonTolerance,
		LimiterNewtonMaxIter:    o.LimiterNewtonMaxIter,
		LimiterRelaxationFactor: o.LimiterRelaxationFactor,
		IndicatorEVCFactor:      o.IndicatorEVCFactor,
		CFLWithBoundaryNodes:    o.CFLWithBoundaryNodes,
		IDViolationStrategy:     "warn",
		LeftBoundary:            "do_nothing",
		RightBoundary:           "do_nothing",
		ParallelDegree:          o.ParallelDegree,
		Ranks:                   1,
	}
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// StepperOptions translates the file parameters into the option set of
// the update driver. Unknown names panic here, before any compute
// starts.
func (ip *InputParameters) StepperOptions() hyperbolic.Options {
	o := hyperbolic.DefaultOptions()
	o.CFL = ip.CFL
	o.LimiterIterations = ip.LimiterIterations
	o.LimiterNewtonTolerance = ip.LimiterNewtonTolerance
	o.LimiterNewtonMaxIter = ip.LimiterNewtonMaxIter
	o.LimiterRelaxationFactor = ip.LimiterRelaxationFactor
	o.IndicatorEVCFactor = ip.IndicatorEVCFactor
	o.CFLWithBoundaryNodes = ip.CFLWithBoundaryNodes
	o.IDViolationStrategy = hyperbolic.NewIDViolationStrategy(ip.IDViolationStrategy)
	if ip.ParallelDegree > 0 {
		o.ParallelDegree = ip.ParallelDegree
	}
	o.Validate()
	return o
}

// Boundaries translates the named end conditions of the line domain.
func (ip *InputParameters) Boundaries() (left, right graph.BoundaryID) {
	var ok bool
	if left, ok = graph.BoundaryNames[ip.LeftBoundary]; !ok {
		panic(fmt.Errorf("unknown boundary condition %q", ip.LeftBoundary))
	}
	if right, ok = graph.BoundaryNames[ip.RightBoundary]; !ok {
		panic(fmt.Errorf("unknown boundary condition %q", ip.RightBoundary))
	}
	return
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Equation\n", ip.Equation)
	fmt.Printf("%8.5f\t\t= CFL\n", ip.CFL)
	fmt.Printf("%8.5f\t\t= FinalTime\n", ip.FinalTime)
	fmt.Printf("[%d]\t\t\t= NodeCount\n", ip.NodeCount)
	fmt.Printf("[%d]\t\t\t= Ranks\n", ip.Ranks)
	fmt.Printf("[%d]\t\t\t= LimiterIterations\n", ip.LimiterIterations)
	fmt.Printf("[%s]\t\t\t= IDViolationStrategy\n", ip.IDViolationStrategy)
	fmt.Printf("[%s / %s]\t= Boundaries\n", ip.LeftBoundary, ip.RightBoundary)
}
