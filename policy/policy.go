// Package policy decides which target a batcher runs against and which prep
// strategy it uses. Strategy choice is empirical tuning data, so both live
// behind an interface the schedulers consume: a static table from the plan
// file, or a user-supplied Starlark script.
package policy

import (
	"errors"
	"sort"

	"github.com/hgwd-dev/hgwd/host"
	"github.com/hgwd-dev/hgwd/sched"
)

// ErrNoTarget means no candidate was viable (all bankrupt or unknown).
var ErrNoTarget = errors.New("no viable target")

// Policy picks targets and prep strategies.
type Policy interface {
	// ChooseTarget picks one target from the candidates. Bankrupt
	// candidates must never be chosen.
	ChooseTarget(candidates []host.TargetSnapshot) (string, error)

	// Strategy returns the prep strategy for a target, and whether the
	// policy has an opinion; callers fall back to a default otherwise.
	Strategy(target string) (sched.Strategy, bool)
}

// Static is a table-driven policy: an explicit preference order and a
// per-target strategy map, both straight from the plan file.
type Static struct {
	// Preference is tried in order; the first candidate present and not
	// bankrupt wins. When empty, the richest candidate wins.
	Preference []string

	Strategies map[string]sched.Strategy
}

func (s *Static) ChooseTarget(candidates []host.TargetSnapshot) (string, error) {
	byName := make(map[string]host.TargetSnapshot, len(candidates))
	for _, c := range candidates {
		byName[c.Name] = c
	}
	for _, name := range s.Preference {
		if c, ok := byName[name]; ok && !c.Bankrupt() {
			return name, nil
		}
	}
	if len(s.Preference) > 0 {
		return "", ErrNoTarget
	}

	viable := make([]host.TargetSnapshot, 0, len(candidates))
	for _, c := range candidates {
		if !c.Bankrupt() {
			viable = append(viable, c)
		}
	}
	if len(viable) == 0 {
		return "", ErrNoTarget
	}
	sort.Slice(viable, func(i, j int) bool {
		if viable[i].MoneyMax != viable[j].MoneyMax {
			return viable[i].MoneyMax > viable[j].MoneyMax
		}
		return viable[i].Name < viable[j].Name
	})
	return viable[0].Name, nil
}

func (s *Static) Strategy(target string) (sched.Strategy, bool) {
	st, ok := s.Strategies[target]
	return st, ok
}
