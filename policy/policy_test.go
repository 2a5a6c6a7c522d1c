package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgwd-dev/hgwd/host"
	"github.com/hgwd-dev/hgwd/sched"
)

func candidates() []host.TargetSnapshot {
	return []host.TargetSnapshot{
		{Name: "n00dles", SecurityCurrent: 3, SecurityMin: 1, MoneyCurrent: 50, MoneyMax: 100},
		{Name: "joesguns", SecurityCurrent: 12, SecurityMin: 5, MoneyCurrent: 800, MoneyMax: 2500},
		{Name: "broke", SecurityCurrent: 1, SecurityMin: 1, MoneyCurrent: 0, MoneyMax: 0},
	}
}

func TestStaticPreferenceOrder(t *testing.T) {
	p := &Static{Preference: []string{"phantasy", "n00dles", "joesguns"}}
	got, err := p.ChooseTarget(candidates())
	require.NoError(t, err)
	assert.Equal(t, "n00dles", got, "first present candidate wins")
}

func TestStaticSkipsBankrupt(t *testing.T) {
	p := &Static{Preference: []string{"broke", "joesguns"}}
	got, err := p.ChooseTarget(candidates())
	require.NoError(t, err)
	assert.Equal(t, "joesguns", got)

	p = &Static{Preference: []string{"broke"}}
	_, err = p.ChooseTarget(candidates())
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestStaticDefaultsToRichest(t *testing.T) {
	p := &Static{}
	got, err := p.ChooseTarget(candidates())
	require.NoError(t, err)
	assert.Equal(t, "joesguns", got)

	_, err = p.ChooseTarget([]host.TargetSnapshot{{Name: "broke"}})
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestStaticStrategyTable(t *testing.T) {
	p := &Static{Strategies: map[string]sched.Strategy{"joesguns": sched.MaxMoneyFirst}}
	st, ok := p.Strategy("joesguns")
	assert.True(t, ok)
	assert.Equal(t, sched.MaxMoneyFirst, st)
	_, ok = p.Strategy("n00dles")
	assert.False(t, ok)
}

const scriptSource = `
def choose_target(candidates):
    best = ""
    best_sec = 1e18
    for c in candidates:
        if c["money_max"] <= 0:
            continue
        if c["security"] < best_sec:
            best = c["name"]
            best_sec = c["security"]
    return best

def strategy(target):
    if target == "n00dles":
        return "MGW"
    return "WG"
`

func TestScriptChoosesTarget(t *testing.T) {
	s, err := LoadScriptSource("policy.star", scriptSource)
	require.NoError(t, err)

	got, err := s.ChooseTarget(candidates())
	require.NoError(t, err)
	assert.Equal(t, "n00dles", got, "lowest-security non-bankrupt candidate")
}

func TestScriptStrategy(t *testing.T) {
	s, err := LoadScriptSource("policy.star", scriptSource)
	require.NoError(t, err)

	st, ok := s.Strategy("n00dles")
	assert.True(t, ok)
	assert.Equal(t, sched.MaxMoneyFirst, st)

	st, ok = s.Strategy("joesguns")
	assert.True(t, ok)
	assert.Equal(t, sched.WeakenGrow, st)
}

func TestScriptRejectsBadResults(t *testing.T) {
	s, err := LoadScriptSource("policy.star", `
def choose_target(candidates):
    return "ghost"
`)
	require.NoError(t, err)
	_, err = s.ChooseTarget(candidates())
	assert.Error(t, err)

	s, err = LoadScriptSource("policy.star", `
def choose_target(candidates):
    return "broke"
`)
	require.NoError(t, err)
	_, err = s.ChooseTarget(candidates())
	assert.Error(t, err, "bankrupt picks are refused")

	_, err = LoadScriptSource("policy.star", `x = 1`)
	assert.Error(t, err, "choose_target is required")
}
