/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"sync"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/hypgraph/hypgraph/InputParameters"
	"github.com/hypgraph/hypgraph/euler"
	"github.com/hypgraph/hypgraph/graph"
	"github.com/hypgraph/hypgraph/hyperbolic"
	"github.com/hypgraph/hypgraph/shallowwater"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Advance the configured problem on the line domain to its final time",
	Long: `Advance the configured problem on the line domain to its final time.

Without an input parameters file a single rank Sod shock tube is run
with the built-in defaults.`,
	Run: func(cmd *cobra.Command, args []string) {
		ip := InputParameters.DefaultParameters()
		if fileName, _ := cmd.Flags().GetString("inputParametersFile"); len(fileName) != 0 {
			data, err := ioutil.ReadFile(fileName)
			if err != nil {
				panic(err)
			}
			if err = ip.Parse(data); err != nil {
				panic(err)
			}
		}
		if cmd.Flags().Changed("nodeCount") {
			ip.NodeCount, _ = cmd.Flags().GetInt("nodeCount")
		}
		if cmd.Flags().Changed("finalTime") {
			ip.FinalTime, _ = cmd.Flags().GetFloat64("finalTime")
		}
		if cmd.Flags().Changed("ranks") {
			ip.Ranks, _ = cmd.Flags().GetInt("ranks")
		}
		profileRun, _ := cmd.Flags().GetBool("profile")
		ip.Print()
		Run(ip, profileRun)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("inputParametersFile", "I", "", "YAML input parameters file")
	runCmd.Flags().Int("nodeCount", 0, "override the node count of the line domain")
	runCmd.Flags().Float64("finalTime", 0, "override the final time")
	runCmd.Flags().Int("ranks", 0, "override the number of ranks")
	runCmd.Flags().Bool("profile", false, "write a CPU profile of the run")
}

// Run executes the configured problem, decomposed over ip.Ranks
// in-process ranks.
func Run(ip *InputParameters.InputParameters, profileRun bool) {
	if profileRun {
		defer profile.Start(profile.CPUProfile).Stop()
	}
	var (
		desc, initial = buildDescription(ip)
		left, right   = ip.Boundaries()
		n             = ip.NodeCount
		h             = 1. / float64(n-1)
	)
	if ip.Ranks <= 1 {
		var (
			g        = graph.NewLineGraph(n, h, left, right)
			ex, comm = hyperbolic.SingleRank()
		)
		runRank(ip, g, desc, initial, ex, comm, true)
		return
	}
	var (
		parts = graph.SplitLine(n, h, ip.Ranks, left, right)
		c     = hyperbolic.NewCluster(ip.Ranks)
		wg    sync.WaitGroup
	)
	for r := 0; r < ip.Ranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			runRank(ip, parts[r], desc, initial, c.Exchanger(parts[r]), c.Communicator(r), r == 0)
		}(r)
	}
	wg.Wait()
}

// buildDescription selects the physics and the initial Riemann data of
// the configured equation.
func buildDescription(ip *InputParameters.InputParameters) (desc hyperbolic.Description, initial func(x float64) hyperbolic.State) {
	switch ip.Equation {
	case "euler":
		d := euler.New(ip.Gamma)
		var (
			left  = d.FromPrimitive(1, 0, 0, 1)
			right = d.FromPrimitive(0.125, 0, 0, 0.1)
		)
		return d, func(x float64) hyperbolic.State {
			if x < 0.5 {
				return left
			}
			return right
		}
	case "shallow_water":
		d := shallowwater.New(ip.Gravity)
		return d, func(x float64) hyperbolic.State {
			if x < 0.5 {
				return hyperbolic.State{1, 0, 0}
			}
			return hyperbolic.State{0.25, 0, 0}
		}
	default:
		panic(fmt.Errorf("unknown equation %q", ip.Equation))
	}
}

func runRank(ip *InputParameters.InputParameters, g *graph.Graph, desc hyperbolic.Description,
	initial func(x float64) hyperbolic.State, ex hyperbolic.Exchanger, comm *hyperbolic.Communicator, report bool) {
	var (
		h = 1. / float64(ip.NodeCount-1)
		s = hyperbolic.NewStepper(g, desc, ip.StepperOptions(), ex, comm)
		u = make([]hyperbolic.State, g.NNodes)
	)
	s.InitialData = func(pos [2]float64, t float64) hyperbolic.State {
		return initial(pos[0])
	}
	for i := range u {
		gi := i
		if g.Halo != nil {
			gi = g.Halo.GlobalID[i]
		}
		u[i] = initial(float64(gi) * h)
	}
	s.ExchangeStates(u)

	var (
		rk   = hyperbolic.NewSSPRK33(s)
		time = 0.
		step = 0
	)
	for ; step < ip.MaxSteps && time < ip.FinalTime; step++ {
		tau, err := rk.Step(u, time)
		if err != nil {
			panic(err)
		}
		time += tau
		if report && step%100 == 0 {
			fmt.Printf("step %6d, t = %8.5f, tau = %10.3e\n", step, time, tau)
		}
	}
	if report {
		fmt.Printf("finished: %d steps to t = %8.5f, %d warnings, %d restarts\n",
			step, time, s.NWarnings, s.NRestarts)
	}
}
