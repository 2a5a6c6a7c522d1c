package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/journal"
	"github.com/hgwd-dev/hgwd/plan"
	"github.com/hgwd-dev/hgwd/sched"
	"github.com/hgwd-dev/hgwd/simhost"
)

var prepScenarioFlag string

var prepCmd = &cobra.Command{
	Use:   "prep PLANFILE TARGET",
	Short: "Prep a single target to min-security/max-money and exit",
	Args:  cobra.MinimumNArgs(2),
	Run:   prepCommand,
}

func init() {
	prepCmd.Flags().StringVar(&prepScenarioFlag, "scenario", "", "Scenario file describing the simulated world (required)")
	_ = prepCmd.MarkFlagRequired("scenario")
}

func prepCommand(cmd *cobra.Command, args []string) {
	p, err := plan.Load(args[0])
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't load plan")
	}
	target := args[1]

	scenario, err := simhost.LoadScenario(prepScenarioFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't load scenario")
	}
	sim := scenario.Build()

	strategy, err := p.Strategy(target)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad strategy for target")
	}

	capacity := hgw.Capacity{ReservedHomeRAM: p.Run.ReservedHomeRAM}
	oracle := hgw.NewOracle(sim, p.Run.SafetyBuffer())
	dispatcher := &sched.Dispatcher{Host: sim, Oracle: oracle, Capacity: capacity, Log: log.Logger}
	var workers []string
	if t, ok := p.Targets[target]; ok {
		workers = t.Workers
	}
	prepper := &sched.Prepper{
		Host:       sim,
		Oracle:     oracle,
		Dispatcher: dispatcher,
		Botnet:     &sched.Assembler{Host: sim, Capacity: capacity, AutoRoot: p.Run.AutoRoot, Names: workers},
		Journal:    journal.Nop{},
		Log:        log.Logger,
		RetryDelay: p.Run.RetryDelay(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := prepper.Prep(ctx, target, strategy)
	if err != nil {
		log.Fatal().Err(err).Msg("Prep failed")
	}

	fmt.Fprintln(os.Stderr, color.Green.Sprintf("✓ %s prepped in %s (%d dispatches, $%.2f gained)",
		target, res.Elapsed.Round(time.Millisecond), res.Dispatches, res.MoneyGained))
}
