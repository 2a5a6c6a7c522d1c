package sched

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/host"
	"github.com/hgwd-dev/hgwd/journal"
)

// Batcher is the sequential hack scheduler. Per cycle it preps the target,
// assembles the botnet, allocates hack threads for the configured steal
// fraction, dispatches, waits, and loops. One batcher per target; never
// share a fleet partition between two running batchers.
type Batcher struct {
	Host       host.Host
	Oracle     *hgw.Oracle
	Dispatcher *Dispatcher
	Botnet     *Assembler
	Prepper    *Prepper
	Journal    journal.Recorder
	Log        zerolog.Logger

	Strategy      Strategy
	StealFraction float64
	RetryDelay    time.Duration

	runID string
	seq   int
}

// BatcherConfig is the explicit configuration a batcher is built from.
type BatcherConfig struct {
	Strategy        Strategy
	StealFraction   float64
	SafetyBuffer    time.Duration
	RetryDelay      time.Duration
	ReservedHomeRAM float64
	AutoRoot        bool
	Workers         []string // fleet partition; nil means the whole fleet
}

// NewBatcher wires a batcher and its collaborators over one host.
func NewBatcher(h host.Host, cfg BatcherConfig, rec journal.Recorder, log zerolog.Logger) *Batcher {
	if rec == nil {
		rec = journal.Nop{}
	}
	runID := uuid.NewString()
	capacity := hgw.Capacity{ReservedHomeRAM: cfg.ReservedHomeRAM}
	oracle := hgw.NewOracle(h, cfg.SafetyBuffer)
	dispatcher := &Dispatcher{Host: h, Oracle: oracle, Capacity: capacity, Log: log}
	botnet := &Assembler{Host: h, Capacity: capacity, AutoRoot: cfg.AutoRoot, Names: cfg.Workers}
	prepper := &Prepper{
		Host:       h,
		Oracle:     oracle,
		Dispatcher: dispatcher,
		Botnet:     botnet,
		Journal:    rec,
		Log:        log,
		RunID:      runID,
		RetryDelay: cfg.RetryDelay,
	}
	return &Batcher{
		Host:          h,
		Oracle:        oracle,
		Dispatcher:    dispatcher,
		Botnet:        botnet,
		Prepper:       prepper,
		Journal:       rec,
		Log:           log,
		Strategy:      cfg.Strategy,
		StealFraction: cfg.StealFraction,
		RetryDelay:    cfg.RetryDelay,
		runID:         runID,
	}
}

// RunID identifies this batcher's entries in the journal.
func (b *Batcher) RunID() string {
	if b.runID == "" {
		b.runID = uuid.NewString()
	}
	return b.runID
}

func (b *Batcher) retryDelay() time.Duration {
	if b.RetryDelay > 0 {
		return b.RetryDelay
	}
	return DefaultRetryDelay
}

func (b *Batcher) recorder() journal.Recorder {
	if b.Journal != nil {
		return b.Journal
	}
	return journal.Nop{}
}

// Run cycles against the target until ctx is cancelled. Cancellation lands
// only at the top of a cycle: an in-flight dispatch has no abort primitive,
// so the current wait always completes first.
//
// A bankrupt target is refused outright: nothing can ever be stolen from it,
// and asking for it is a caller defect, not a condition to wait out.
func (b *Batcher) Run(ctx context.Context, target string) error {
	if b.StealFraction <= 0 || b.StealFraction > 1 {
		return fmt.Errorf("steal fraction %v outside (0, 1]", b.StealFraction)
	}
	snap, err := b.Oracle.Snapshot(target)
	if err != nil {
		return err
	}
	if snap.Bankrupt() {
		return fmt.Errorf("%w: %s", hgw.ErrBankruptTarget, target)
	}

	b.Log.Info().
		Str("target", target).
		Str("run", b.RunID()).
		Str("strategy", b.Strategy.String()).
		Float64("steal", b.StealFraction).
		Msg("batcher started")

	for {
		if err := ctx.Err(); err != nil {
			b.Log.Info().Str("target", target).Msg("batcher cancelled")
			return err
		}
		if err := b.cycle(ctx, target); err != nil {
			return err
		}
	}
}

// cycle is one full batch: prep, allocate, hack, record.
func (b *Batcher) cycle(ctx context.Context, target string) error {
	if _, err := b.Prepper.Prep(ctx, target, b.Strategy); err != nil {
		return err
	}

	workers := b.Botnet.Assemble()

	potency, err := b.Host.HackPotency(target)
	if err != nil {
		return err
	}
	if potency <= 0 {
		// Skill too low for this target right now. Transient; back off.
		b.Log.Debug().Str("target", target).Msg("zero hack potency, backing off")
		return b.Host.Sleep(ctx, b.retryDelay())
	}

	required := int(math.Ceil(b.StealFraction / potency))
	allocs, total, err := b.Dispatcher.PlanThreads(host.Hack, workers, required)
	if err != nil {
		return err
	}
	if total == 0 {
		// Empty botnet or no free RAM anywhere. Retry after a fixed delay
		// rather than spinning on zero-duration dispatches.
		b.Log.Debug().Str("target", target).Msg("no hack capacity, backing off")
		return b.Host.Sleep(ctx, b.retryDelay())
	}
	if total < required {
		b.Log.Debug().
			Str("target", target).
			Int("required", required).
			Int("allocated", total).
			Msg("capacity-capped hack allocation")
	}

	before, err := b.Oracle.Snapshot(target)
	if err != nil {
		return err
	}
	disp, err := b.Dispatcher.Dispatch(ctx, host.Hack, target, allocs)
	if err != nil {
		return err
	}
	if disp.NoOp() {
		return b.Host.Sleep(ctx, b.retryDelay())
	}

	after, err := b.Oracle.Snapshot(target)
	if err != nil {
		return err
	}

	b.seq++
	b.recorder().Record(journal.Entry{
		RunID:          b.RunID(),
		Seq:            b.seq,
		At:             b.Host.Now(),
		Kind:           journal.KindCycle,
		Target:         target,
		Action:         host.Hack.String(),
		Threads:        disp.Threads,
		Workers:        disp.Workers,
		Wait:           disp.Wait,
		SecurityBefore: before.SecurityCurrent,
		SecurityAfter:  after.SecurityCurrent,
		MoneyBefore:    before.MoneyCurrent,
		MoneyAfter:     after.MoneyCurrent,
	})

	b.Log.Info().
		Str("target", target).
		Int("threads", disp.Threads).
		Float64("stolen", before.MoneyCurrent-after.MoneyCurrent).
		Dur("wait", disp.Wait).
		Msg("batch cycle complete")
	return nil
}
