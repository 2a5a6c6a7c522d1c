package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/host"
)

// Allocation assigns a thread count on one worker to an action.
type Allocation struct {
	Worker  hgw.Worker
	Threads int
}

// Dispatch is the record of one completed (or no-op) dispatch.
type Dispatch struct {
	ID      string
	Kind    host.ActionKind
	Target  string
	Threads int // threads actually launched
	Workers int // workers that launched successfully
	Failed  int // workers whose launch failed
	Wait    time.Duration

	StartedAt time.Time
	Deadline  time.Time
}

// NoOp reports whether nothing was launched and nothing was waited for.
func (d Dispatch) NoOp() bool {
	return d.Workers == 0
}

const defaultBreakerCooldown = 30 * time.Second

// Dispatcher launches one action across a worker set and suspends until the
// slowest instance finishes. All instances of one dispatch start at the same
// time against the same target state, so one wait covers them all.
type Dispatcher struct {
	Host     host.Host
	Oracle   *hgw.Oracle
	Capacity hgw.Capacity
	Log      zerolog.Logger

	// BreakerCooldown is how long a worker is held out of dispatches after
	// its launches keep failing. Zero means defaultBreakerCooldown.
	BreakerCooldown time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// Plan allocates every worker's full capacity for an action.
func (d *Dispatcher) Plan(kind host.ActionKind, workers []hgw.Worker) ([]Allocation, error) {
	spec, err := hgw.Action(kind)
	if err != nil {
		return nil, err
	}
	var out []Allocation
	for _, w := range workers {
		if t := d.Capacity.Threads(w, spec.ScriptRAM); t >= 1 {
			out = append(out, Allocation{Worker: w, Threads: t})
		}
	}
	return out, nil
}

// PlanThreads fills workers greedily until required threads are allocated or
// capacity runs out. Partial allocations are returned as-is; acting with
// fewer threads beats stalling.
func (d *Dispatcher) PlanThreads(kind host.ActionKind, workers []hgw.Worker, required int) ([]Allocation, int, error) {
	if required < 0 {
		return nil, 0, fmt.Errorf("%w: required %d", hgw.ErrNegativeThreads, required)
	}
	spec, err := hgw.Action(kind)
	if err != nil {
		return nil, 0, err
	}
	var out []Allocation
	total := 0
	for _, w := range workers {
		if total >= required {
			break
		}
		t := d.Capacity.Threads(w, spec.ScriptRAM)
		if t < 1 {
			continue
		}
		if total+t > required {
			t = required - total
		}
		out = append(out, Allocation{Worker: w, Threads: t})
		total += t
	}
	return out, total, nil
}

// Dispatch launches the action on every allocated worker, then suspends
// until the shared completion deadline. An empty or fully-failed allocation
// is a zero-duration no-op, not an error: the caller's loop retries.
func (d *Dispatcher) Dispatch(ctx context.Context, kind host.ActionKind, target string, allocs []Allocation) (Dispatch, error) {
	spec, err := hgw.Action(kind)
	if err != nil {
		return Dispatch{}, err
	}

	out := Dispatch{
		ID:        uuid.NewString(),
		Kind:      kind,
		Target:    target,
		StartedAt: d.Host.Now(),
	}

	for _, a := range allocs {
		if a.Threads < 0 {
			return Dispatch{}, fmt.Errorf("%w: %d on %s", hgw.ErrNegativeThreads, a.Threads, a.Worker.Name)
		}
		if a.Threads == 0 {
			continue
		}
		if err := d.launch(spec, a, target); err != nil {
			// The worker contributed nothing this cycle. No rollback, no
			// re-plan: the remaining launches stand.
			out.Failed++
			d.Log.Warn().Err(err).
				Str("worker", a.Worker.Name).
				Str("action", kind.String()).
				Str("target", target).
				Msg("launch failed, skipping worker")
			continue
		}
		out.Workers++
		out.Threads += a.Threads
	}

	if out.Workers == 0 {
		out.Deadline = out.StartedAt
		return out, nil
	}

	wait, err := d.Oracle.WaitTime(target, kind)
	if err != nil {
		return Dispatch{}, err
	}
	out.Wait = wait
	out.Deadline = out.StartedAt.Add(wait)

	d.Log.Debug().
		Str("dispatch", out.ID).
		Str("action", kind.String()).
		Str("target", target).
		Int("threads", out.Threads).
		Int("workers", out.Workers).
		Dur("wait", wait).
		Msg("dispatched")

	if err := d.Host.Sleep(ctx, wait); err != nil {
		return out, err
	}
	return out, nil
}

// launch runs one host launch through the worker's circuit breaker, so a
// worker whose launches keep failing sits out until the breaker half-opens.
func (d *Dispatcher) launch(spec hgw.ActionSpec, a Allocation, target string) error {
	_, err := d.breaker(a.Worker.Name).Execute(func() (any, error) {
		return nil, d.Host.LaunchAction(spec.Script, a.Worker.Name, a.Threads, target)
	})
	return err
}

func (d *Dispatcher) breaker(worker string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.breakers == nil {
		d.breakers = make(map[string]*gobreaker.CircuitBreaker)
	}
	cb, ok := d.breakers[worker]
	if !ok {
		cooldown := d.BreakerCooldown
		if cooldown <= 0 {
			cooldown = defaultBreakerCooldown
		}
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    worker,
			Timeout: cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		})
		d.breakers[worker] = cb
	}
	return cb
}
