// Package hgw holds the action table, the worker capacity model, and the
// target state oracle used by the schedulers.
package hgw

import (
	"fmt"

	"github.com/hgwd-dev/hgwd/host"
)

// ActionSpec is the associated data for one action kind: which script
// implements it, what one thread costs in RAM, and how much one thread moves
// the target's security as a side effect.
type ActionSpec struct {
	Kind           host.ActionKind
	Script         string
	ScriptRAM      float64 // GB per thread
	SecurityPerRun float64 // security delta per thread, negative for weaken
}

var actionTable = [...]ActionSpec{
	host.Weaken: {Kind: host.Weaken, Script: "payload/weaken.js", ScriptRAM: 1.75, SecurityPerRun: -0.05},
	host.Grow:   {Kind: host.Grow, Script: "payload/grow.js", ScriptRAM: 1.75, SecurityPerRun: 0.004},
	host.Hack:   {Kind: host.Hack, Script: "payload/hack.js", ScriptRAM: 1.70, SecurityPerRun: 0.002},
}

// Action returns the spec for a kind. Unknown kinds are a programming error.
func Action(kind host.ActionKind) (ActionSpec, error) {
	if int(kind) < 0 || int(kind) >= len(actionTable) {
		return ActionSpec{}, fmt.Errorf("%w: %d", ErrUnknownAction, kind)
	}
	return actionTable[kind], nil
}

// Actions returns the full table, weaken first.
func Actions() []ActionSpec {
	out := make([]ActionSpec, len(actionTable))
	copy(out, actionTable[:])
	return out
}
