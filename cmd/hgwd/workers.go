package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/simhost"
)

var (
	workersScenarioFlag string
	workersReservedFlag float64
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the fleet and per-action thread capacities",
	Run:   workersCommand,
}

func init() {
	workersCmd.Flags().StringVar(&workersScenarioFlag, "scenario", "", "Scenario file describing the simulated world (required)")
	workersCmd.Flags().Float64Var(&workersReservedFlag, "reserved-home-ram", 0, "RAM headroom kept free on the home worker")
	_ = workersCmd.MarkFlagRequired("scenario")
}

func workersCommand(cmd *cobra.Command, args []string) {
	scenario, err := simhost.LoadScenario(workersScenarioFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't load scenario")
	}
	sim := scenario.Build()
	capacity := hgw.Capacity{ReservedHomeRAM: workersReservedFlag}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKER\tRAM\tUSED\tROOT\tWEAKEN\tGROW\tHACK")
	for _, info := range sim.EnumerateWorkers() {
		w := hgw.FromInfo(info)
		var threads [3]int
		for i, spec := range hgw.Actions() {
			threads[i] = capacity.Threads(w, spec.ScriptRAM)
		}
		root := "-"
		if info.HasRoot {
			root = "yes"
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%s\t%d\t%d\t%d\n",
			info.Name, info.TotalRAM, info.UsedRAM, root, threads[0], threads[1], threads[2])
	}
	if err := tw.Flush(); err != nil {
		log.Error().Err(err).Msg("couldn't flush table")
	}
}
