package sched

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/journal"
	"github.com/hgwd-dev/hgwd/simhost"
)

func newPrepper(sim *simhost.SimHost, rec journal.Recorder) *Prepper {
	capacity := hgw.Capacity{}
	oracle := hgw.NewOracle(sim, 0)
	d := &Dispatcher{Host: sim, Oracle: oracle, Capacity: capacity, Log: zerolog.Nop()}
	return &Prepper{
		Host:       sim,
		Oracle:     oracle,
		Dispatcher: d,
		Botnet:     &Assembler{Host: sim, Capacity: capacity},
		Journal:    rec,
		Log:        zerolog.Nop(),
		RunID:      "test-run",
	}
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]Strategy{
		"WG": WeakenGrow, "gw": GrowWeaken, "MWG": MinSecurityFirst, " mgw ": MaxMoneyFirst,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("GWW")
	assert.Error(t, err)
}

func TestPrepConvergesUnderEveryStrategy(t *testing.T) {
	for _, strategy := range []Strategy{WeakenGrow, GrowWeaken, MinSecurityFirst, MaxMoneyFirst} {
		t.Run(strategy.String(), func(t *testing.T) {
			sim := simhost.New()
			sim.AddWorker("pserv-0", 100, 0, true, false, false)
			sim.AddTarget("joesguns", 10, 1, 0, 1000)

			p := newPrepper(sim, journal.Nop{})
			res, err := p.Prep(context.Background(), "joesguns", strategy)
			require.NoError(t, err)

			snap, err := sim.TargetSnapshot("joesguns")
			require.NoError(t, err)
			assert.LessOrEqual(t, snap.SecurityCurrent, snap.SecurityMin, "security at floor")
			assert.GreaterOrEqual(t, snap.MoneyCurrent, snap.MoneyMax, "money at ceiling")
			assert.GreaterOrEqual(t, res.MoneyGained, 0.0)
			assert.Greater(t, res.Dispatches, 0)
			assert.Greater(t, res.Elapsed, time.Duration(0))
		})
	}
}

func TestPrepAlreadySettledIsImmediate(t *testing.T) {
	sim := simhost.New()
	sim.AddWorker("pserv-0", 100, 0, true, false, false)
	sim.AddTarget("rested", 1, 1, 1000, 1000)

	p := newPrepper(sim, journal.Nop{})
	res, err := p.Prep(context.Background(), "rested", WeakenGrow)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Dispatches)
	assert.Equal(t, 0, sim.Launches())
}

func TestPrepRecordsJournalEntries(t *testing.T) {
	sim := simhost.New()
	sim.AddWorker("pserv-0", 100, 0, true, false, false)
	sim.AddTarget("joesguns", 10, 1, 0, 1000)

	mem := journal.NewMemory()
	p := newPrepper(sim, mem)
	_, err := p.Prep(context.Background(), "joesguns", GrowWeaken)
	require.NoError(t, err)

	entries := mem.Entries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, journal.KindPrep, last.Kind)
	assert.Equal(t, "GW", last.Action)
	for _, e := range entries[:len(entries)-1] {
		assert.Equal(t, journal.KindDispatch, e.Kind)
	}
}

func TestPrepCancellation(t *testing.T) {
	sim := simhost.New()
	// No workers at all: prep would back off forever.
	sim.AddTarget("joesguns", 10, 1, 0, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPrepper(sim, journal.Nop{})
	_, err := p.Prep(ctx, "joesguns", WeakenGrow)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrepBacksOffWithoutCapacity(t *testing.T) {
	sim := simhost.New()
	sim.AddWorker("tiny", 1, 0, true, false, false) // too small for one thread
	sim.AddTarget("joesguns", 10, 1, 500, 1000)

	p := newPrepper(sim, journal.Nop{})
	p.RetryDelay = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Prep(ctx, "joesguns", WeakenGrow)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, sim.Launches(), "no launch is ever attempted without capacity")
	assert.GreaterOrEqual(t, sim.Now().Sub(time.Unix(0, 0).UTC()), 5*time.Second,
		"the loop slept on the retry delay instead of spinning")
}
