package simhost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/host"
)

func launchAndWait(t *testing.T, sim *SimHost, kind host.ActionKind, worker, target string, threads int) {
	t.Helper()
	spec, err := hgw.Action(kind)
	require.NoError(t, err)
	require.NoError(t, sim.LaunchAction(spec.Script, worker, threads, target))
	d, err := sim.ActionDuration(target, kind)
	require.NoError(t, err)
	require.NoError(t, sim.Sleep(context.Background(), d))
}

func TestWeakenFloorsAtMinimum(t *testing.T) {
	sim := New()
	sim.AddWorker("pserv-0", 1024, 0, true, false, false)
	sim.AddTarget("joesguns", 10, 3, 500, 1000)

	// 200 threads would drop security by 10; it must clamp at the floor.
	launchAndWait(t, sim, host.Weaken, "pserv-0", "joesguns", 200)

	snap, err := sim.TargetSnapshot("joesguns")
	require.NoError(t, err)
	assert.Equal(t, 3.0, snap.SecurityCurrent)
}

func TestGrowCapsAtMaxAndRaisesSecurity(t *testing.T) {
	sim := New()
	sim.AddWorker("pserv-0", 4096, 0, true, false, false)
	sim.AddTarget("joesguns", 3, 3, 900, 1000)

	launchAndWait(t, sim, host.Grow, "pserv-0", "joesguns", 500)

	snap, err := sim.TargetSnapshot("joesguns")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, snap.MoneyCurrent, "money is capped at the ceiling")
	assert.Greater(t, snap.SecurityCurrent, 3.0, "grow raises security as a side effect")
}

func TestHackStealsPotencyFraction(t *testing.T) {
	sim := New()
	sim.SetPlayer(100, 0.01)
	sim.AddWorker("pserv-0", 1024, 0, true, false, false)
	sim.AddTarget("joesguns", 3, 3, 1000, 1000)

	launchAndWait(t, sim, host.Hack, "pserv-0", "joesguns", 40)

	snap, err := sim.TargetSnapshot("joesguns")
	require.NoError(t, err)
	// 40 threads at 0.01/thread steal 40% of current money.
	assert.InDelta(t, 600.0, snap.MoneyCurrent, 1e-9)
	assert.Greater(t, snap.SecurityCurrent, 3.0)
}

func TestDurationOrdering(t *testing.T) {
	sim := New()
	sim.AddTarget("joesguns", 10, 3, 500, 1000)

	hack, err := sim.ActionDuration("joesguns", host.Hack)
	require.NoError(t, err)
	grow, err := sim.ActionDuration("joesguns", host.Grow)
	require.NoError(t, err)
	weaken, err := sim.ActionDuration("joesguns", host.Weaken)
	require.NoError(t, err)

	assert.Less(t, hack, grow)
	assert.Less(t, grow, weaken)
}

func TestSleepAdvancesVirtualClock(t *testing.T) {
	sim := New()
	before := sim.Now()
	require.NoError(t, sim.Sleep(context.Background(), time.Hour))
	assert.Equal(t, time.Hour, sim.Now().Sub(before))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sim.Sleep(ctx, time.Second), context.Canceled)
}

func TestLaunchReservesAndReleasesRAM(t *testing.T) {
	sim := New()
	sim.AddWorker("pserv-0", 35, 0, true, false, false)
	sim.AddTarget("joesguns", 10, 3, 500, 1000)

	spec, err := hgw.Action(host.Weaken)
	require.NoError(t, err)

	// 20 threads fit exactly (35 GB / 1.75); a second instance must not.
	require.NoError(t, sim.LaunchAction(spec.Script, "pserv-0", 20, "joesguns"))
	assert.Error(t, sim.LaunchAction(spec.Script, "pserv-0", 1, "joesguns"))

	d, err := sim.ActionDuration("joesguns", host.Weaken)
	require.NoError(t, err)
	require.NoError(t, sim.Sleep(context.Background(), d))

	info := sim.EnumerateWorkers()
	require.Len(t, info, 1)
	assert.Equal(t, 0.0, info[0].UsedRAM, "RAM released on completion")
}

func TestLaunchRequiresRoot(t *testing.T) {
	sim := New()
	sim.AddWorker("locked", 64, 0, false, false, true)
	sim.AddTarget("joesguns", 10, 3, 500, 1000)

	spec, err := hgw.Action(host.Hack)
	require.NoError(t, err)
	assert.Error(t, sim.LaunchAction(spec.Script, "locked", 1, "joesguns"))

	assert.True(t, sim.AcquireRoot("locked"))
	assert.NoError(t, sim.LaunchAction(spec.Script, "locked", 1, "joesguns"))
}

func TestInjectedLaunchFailures(t *testing.T) {
	sim := New()
	sim.AddWorker("flaky", 4096, 0, true, false, false)
	sim.AddTarget("joesguns", 10, 3, 500, 1000)
	sim.SetFaults(Faults{LaunchFailureRate: 1.0, Seed: 7})

	spec, err := hgw.Action(host.Weaken)
	require.NoError(t, err)
	assert.Error(t, sim.LaunchAction(spec.Script, "flaky", 1, "joesguns"))
	assert.Equal(t, 0, sim.Launches())
}

func TestScenarioValidation(t *testing.T) {
	bad := Scenario{
		Targets: []ScenarioTarget{{Name: "joesguns", Security: 1, SecurityMin: 5, MoneyMax: 100}},
	}
	assert.Error(t, bad.validate())

	good := Scenario{
		PlayerSkill:      50,
		PotencyPerThread: 0.01,
		Workers:          []ScenarioWorker{{Name: "home", RAM: 64, Rooted: true, Home: true}},
		Targets:          []ScenarioTarget{{Name: "joesguns", Security: 10, SecurityMin: 3, Money: 500, MoneyMax: 1000}},
	}
	require.NoError(t, good.validate())

	sim := good.Build()
	snap, err := sim.TargetSnapshot("joesguns")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, snap.MoneyMax)
}
