package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hgwd-dev/hgwd/host"
	"github.com/hgwd-dev/hgwd/journal"
	"github.com/hgwd-dev/hgwd/plan"
	"github.com/hgwd-dev/hgwd/policy"
	"github.com/hgwd-dev/hgwd/sched"
	"github.com/hgwd-dev/hgwd/simhost"
)

var (
	scenarioFlag string
	exportFlag   string
)

var runCmd = &cobra.Command{
	Use:   "run PLANFILE",
	Short: "Run batchers for every target in the plan",
	Args:  cobra.MinimumNArgs(1),
	Run:   runCommand,
}

func init() {
	runCmd.Flags().StringVar(&scenarioFlag, "scenario", "", "Scenario file describing the simulated world (required)")
	runCmd.Flags().StringVar(&exportFlag, "export", "", "Write a zstd journal archive to this path at the end of the run")
	_ = runCmd.MarkFlagRequired("scenario")
}

func runCommand(cmd *cobra.Command, args []string) {
	p, err := plan.Load(args[0])
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't load plan")
	}
	scenario, err := simhost.LoadScenario(scenarioFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't load scenario")
	}
	sim := scenario.Build()

	if err := validatePartitions(sim, p); err != nil {
		log.Fatal().Err(err).Msg("Fleet partition is invalid")
	}

	mem := journal.NewMemory()
	var rec journal.Recorder = mem
	var db *journal.SQLite
	if p.Run.Journal != "" {
		db, err = journal.OpenSQLite(p.Run.Journal)
		if err != nil {
			log.Fatal().Err(err).Msg("Couldn't open journal database")
		}
		defer db.Close()
		rec = tee{mem, db}
	}

	targets, err := resolveTargets(sim, scenario, p)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't resolve targets")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, color.Cyan.Sprint("Starting batchers..."))

	if len(targets) > 1 {
		for _, t := range targets {
			if len(t.workers) == 0 {
				log.Warn().Str("target", t.name).Msg("no worker partition; concurrent batchers may double-book the fleet")
			}
		}
	}

	var wg sync.WaitGroup
	for _, t := range targets {
		cfg := sched.BatcherConfig{
			Strategy:        t.strategy,
			StealFraction:   p.Steal(t.name),
			SafetyBuffer:    p.Run.SafetyBuffer(),
			RetryDelay:      p.Run.RetryDelay(),
			ReservedHomeRAM: p.Run.ReservedHomeRAM,
			AutoRoot:        p.Run.AutoRoot,
			Workers:         t.workers,
		}
		b := sched.NewBatcher(sim, cfg, rec, log.With().Str("target", t.name).Logger())
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := b.Run(ctx, name); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("target", name).Msg("batcher stopped")
				stop()
			}
		}(t.name)
	}
	wg.Wait()

	fmt.Fprint(os.Stderr, journal.FormatRunReport(mem.Entries()))

	if exportFlag != "" {
		if err := exportArchive(exportFlag, mem.Entries()); err != nil {
			log.Error().Err(err).Msg("journal export failed")
		}
	}
}

type resolvedTarget struct {
	name     string
	strategy sched.Strategy
	workers  []string
}

// resolveTargets expands the plan's target table, consulting the policy
// script (when configured) for target choice and strategy opinions.
func resolveTargets(sim *simhost.SimHost, scenario simhost.Scenario, p *plan.Plan) ([]resolvedTarget, error) {
	var pol policy.Policy
	if p.Run.Policy != "" {
		script, err := policy.LoadScript(p.Run.Policy)
		if err != nil {
			return nil, err
		}
		pol = script
	}

	var out []resolvedTarget
	for name := range p.Targets {
		strategy, err := p.Strategy(name)
		if err != nil {
			return nil, err
		}
		if pol != nil {
			if st, ok := pol.Strategy(name); ok {
				strategy = st
			}
		}
		out = append(out, resolvedTarget{name: name, strategy: strategy, workers: p.Targets[name].Workers})
	}

	// A plan with no explicit targets delegates the choice to the policy.
	if len(out) == 0 && pol != nil {
		candidates := make([]host.TargetSnapshot, 0, len(scenario.Targets))
		for _, t := range scenario.Targets {
			snap, err := sim.TargetSnapshot(t.Name)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, snap)
		}
		name, err := pol.ChooseTarget(candidates)
		if err != nil {
			return nil, err
		}
		strategy := sched.WeakenGrow
		if st, ok := pol.Strategy(name); ok {
			strategy = st
		}
		out = append(out, resolvedTarget{name: name, strategy: strategy})
	}
	return out, nil
}

func validatePartitions(sim *simhost.SimHost, p *plan.Plan) error {
	groups := make(map[string][]string)
	for name, t := range p.Targets {
		if len(t.Workers) > 0 {
			groups[name] = t.Workers
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return sched.PartitionFleet(sim.EnumerateWorkers(), groups)
}

func exportArchive(path string, entries []journal.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := journal.Export(f, entries); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// tee fans entries out to multiple recorders.
type tee []journal.Recorder

func (t tee) Record(e journal.Entry) {
	for _, r := range t {
		r.Record(e)
	}
}
