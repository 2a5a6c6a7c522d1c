package sched

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/host"
	"github.com/hgwd-dev/hgwd/journal"
)

// Strategy selects the order in which prep drives a target to its
// min-security/max-money resting state. Which strategy converges fastest
// depends on the target's security/money profile in ways the host does not
// expose, so the choice is caller data, never derived here.
type Strategy int

const (
	// WeakenGrow interleaves: weaken if needed, then grow if needed, loop.
	WeakenGrow Strategy = iota
	// GrowWeaken interleaves with grow checked first.
	GrowWeaken
	// MinSecurityFirst weakens to the floor before interleaving.
	MinSecurityFirst
	// MaxMoneyFirst grows to the ceiling, then weakens to the floor.
	MaxMoneyFirst
)

func (s Strategy) String() string {
	switch s {
	case WeakenGrow:
		return "WG"
	case GrowWeaken:
		return "GW"
	case MinSecurityFirst:
		return "MWG"
	case MaxMoneyFirst:
		return "MGW"
	}
	return "unknown"
}

// ParseStrategy accepts the short strategy names, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WG":
		return WeakenGrow, nil
	case "GW":
		return GrowWeaken, nil
	case "MWG":
		return MinSecurityFirst, nil
	case "MGW":
		return MaxMoneyFirst, nil
	}
	return 0, fmt.Errorf("unknown prep strategy %q", s)
}

// DefaultRetryDelay is how long a scheduler backs off when it finds no
// capacity at all, instead of spinning on zero-duration dispatches.
const DefaultRetryDelay = time.Second

// PrepResult reports what one prep call cost and produced.
type PrepResult struct {
	Elapsed     time.Duration
	MoneyGained float64
	Dispatches  int
}

// Prepper drives targets to min-security/max-money. Grow raises security as
// a side effect, so no strategy converges in a fixed number of passes; every
// strategy loops until both predicates hold in the same snapshot.
type Prepper struct {
	Host       host.Host
	Oracle     *hgw.Oracle
	Dispatcher *Dispatcher
	Botnet     *Assembler
	Journal    journal.Recorder
	Log        zerolog.Logger

	RunID      string
	RetryDelay time.Duration

	seq int
}

func (p *Prepper) retryDelay() time.Duration {
	if p.RetryDelay > 0 {
		return p.RetryDelay
	}
	return DefaultRetryDelay
}

func (p *Prepper) recorder() journal.Recorder {
	if p.Journal != nil {
		return p.Journal
	}
	return journal.Nop{}
}

// Prep runs the strategy's state machine until the target is at minimum
// security and maximum money simultaneously.
func (p *Prepper) Prep(ctx context.Context, target string, strategy Strategy) (PrepResult, error) {
	start := p.Host.Now()
	before, err := p.Oracle.Snapshot(target)
	if err != nil {
		return PrepResult{}, err
	}

	var res PrepResult
	switch strategy {
	case WeakenGrow:
		err = p.interleave(ctx, target, &res, host.Weaken, host.Grow)
	case GrowWeaken:
		err = p.interleave(ctx, target, &res, host.Grow, host.Weaken)
	case MinSecurityFirst:
		if err = p.driveTo(ctx, target, &res, host.Weaken); err == nil {
			err = p.interleave(ctx, target, &res, host.Weaken, host.Grow)
		}
	case MaxMoneyFirst:
		err = p.moneyFirst(ctx, target, &res)
	default:
		return PrepResult{}, fmt.Errorf("unknown prep strategy %d", strategy)
	}
	if err != nil {
		return res, err
	}

	after, err := p.Oracle.Snapshot(target)
	res.Elapsed = p.Host.Now().Sub(start)
	if err != nil {
		return res, err
	}
	if gained := after.MoneyCurrent - before.MoneyCurrent; gained > 0 {
		res.MoneyGained = gained
	}

	p.seq++
	p.recorder().Record(journal.Entry{
		RunID:          p.RunID,
		Seq:            p.seq,
		At:             p.Host.Now(),
		Kind:           journal.KindPrep,
		Target:         target,
		Action:         strategy.String(),
		SecurityBefore: before.SecurityCurrent,
		SecurityAfter:  after.SecurityCurrent,
		MoneyBefore:    before.MoneyCurrent,
		MoneyAfter:     after.MoneyCurrent,
	})

	p.Log.Info().
		Str("target", target).
		Str("strategy", strategy.String()).
		Dur("elapsed", res.Elapsed).
		Int("dispatches", res.Dispatches).
		Float64("gained", res.MoneyGained).
		Msg("target prepped")
	return res, nil
}

// needsAction maps an action to the predicate it is meant to fix.
func (p *Prepper) needsAction(target string, kind host.ActionKind) (bool, error) {
	switch kind {
	case host.Weaken:
		ok, err := p.Oracle.HasMinSecurity(target)
		return !ok, err
	case host.Grow:
		ok, err := p.Oracle.HasMaxMoney(target)
		return !ok, err
	}
	return false, fmt.Errorf("%w: %s is not a prep action", hgw.ErrUnknownAction, kind)
}

// settled reports whether both resting-state predicates hold at once.
func (p *Prepper) settled(target string) (bool, error) {
	minSec, err := p.Oracle.HasMinSecurity(target)
	if err != nil {
		return false, err
	}
	maxMoney, err := p.Oracle.HasMaxMoney(target)
	if err != nil {
		return false, err
	}
	return minSec && maxMoney, nil
}

// interleave is the WG/GW loop body: each pass dispatches first then second
// when their predicates call for it, and the loop exits only when both
// predicates hold in the same pass.
func (p *Prepper) interleave(ctx context.Context, target string, res *PrepResult, first, second host.ActionKind) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, kind := range [2]host.ActionKind{first, second} {
			needed, err := p.needsAction(target, kind)
			if err != nil {
				return err
			}
			if !needed {
				continue
			}
			if err := p.dispatchFull(ctx, target, kind, res); err != nil {
				return err
			}
		}
		done, err := p.settled(target)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// driveTo repeats one action until its predicate is satisfied.
func (p *Prepper) driveTo(ctx context.Context, target string, res *PrepResult, kind host.ActionKind) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		needed, err := p.needsAction(target, kind)
		if err != nil {
			return err
		}
		if !needed {
			return nil
		}
		if err := p.dispatchFull(ctx, target, kind, res); err != nil {
			return err
		}
	}
}

// moneyFirst is the MGW machine: grow to the ceiling, then weaken to the
// floor, in single passes. Weaken does not move money, so one pass normally
// settles; the outer loop covers the case where it did not.
func (p *Prepper) moneyFirst(ctx context.Context, target string, res *PrepResult) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.driveTo(ctx, target, res, host.Grow); err != nil {
			return err
		}
		if err := p.driveTo(ctx, target, res, host.Weaken); err != nil {
			return err
		}
		done, err := p.settled(target)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// dispatchFull assembles the current botnet and throws its whole capacity at
// one action. No capacity is not an error: back off and let the caller's
// loop try again.
func (p *Prepper) dispatchFull(ctx context.Context, target string, kind host.ActionKind, res *PrepResult) error {
	workers := p.Botnet.Assemble()
	allocs, err := p.Dispatcher.Plan(kind, workers)
	if err != nil {
		return err
	}
	if len(allocs) == 0 {
		p.Log.Debug().Str("target", target).Str("action", kind.String()).Msg("no capacity, backing off")
		return p.Host.Sleep(ctx, p.retryDelay())
	}

	before, err := p.Oracle.Snapshot(target)
	if err != nil {
		return err
	}
	disp, err := p.Dispatcher.Dispatch(ctx, kind, target, allocs)
	if err != nil {
		return err
	}
	if disp.NoOp() {
		// Every launch failed; same treatment as no capacity.
		return p.Host.Sleep(ctx, p.retryDelay())
	}
	res.Dispatches++

	after, err := p.Oracle.Snapshot(target)
	if err != nil {
		return err
	}
	p.seq++
	p.recorder().Record(journal.Entry{
		RunID:          p.RunID,
		Seq:            p.seq,
		At:             p.Host.Now(),
		Kind:           journal.KindDispatch,
		Target:         target,
		Action:         kind.String(),
		Threads:        disp.Threads,
		Workers:        disp.Workers,
		Wait:           disp.Wait,
		SecurityBefore: before.SecurityCurrent,
		SecurityAfter:  after.SecurityCurrent,
		MoneyBefore:    before.MoneyCurrent,
		MoneyAfter:     after.MoneyCurrent,
	})
	return nil
}
