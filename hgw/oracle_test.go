package hgw_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/host"
	"github.com/hgwd-dev/hgwd/simhost"
)

func TestOraclePredicates(t *testing.T) {
	sim := simhost.New()
	sim.AddTarget("joesguns", 5, 2, 300, 1000)
	sim.AddTarget("rested", 2, 2, 1000, 1000)
	oracle := hgw.NewOracle(sim, 0)

	minSec, err := oracle.HasMinSecurity("joesguns")
	require.NoError(t, err)
	assert.False(t, minSec)
	maxMoney, err := oracle.HasMaxMoney("joesguns")
	require.NoError(t, err)
	assert.False(t, maxMoney)

	minSec, err = oracle.HasMinSecurity("rested")
	require.NoError(t, err)
	assert.True(t, minSec)
	maxMoney, err = oracle.HasMaxMoney("rested")
	require.NoError(t, err)
	assert.True(t, maxMoney)

	_, err = oracle.HasMaxMoney("no-such-target")
	assert.Error(t, err)
}

func TestOracleWaitTimeAddsBuffer(t *testing.T) {
	sim := simhost.New()
	sim.AddTarget("joesguns", 5, 2, 300, 1000)

	buffer := 250 * time.Millisecond
	oracle := hgw.NewOracle(sim, buffer)

	for _, kind := range []host.ActionKind{host.Weaken, host.Grow, host.Hack} {
		raw, err := sim.ActionDuration("joesguns", kind)
		require.NoError(t, err)
		wait, err := oracle.WaitTime("joesguns", kind)
		require.NoError(t, err)
		assert.Equal(t, raw+buffer, wait, "action %s", kind)
	}
}

func TestOracleDefaultBuffer(t *testing.T) {
	oracle := hgw.NewOracle(simhost.New(), 0)
	assert.Equal(t, hgw.DefaultSafetyBuffer, oracle.SafetyBuffer)
}
