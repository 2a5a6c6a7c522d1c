package hgw

import (
	"math"

	"github.com/hgwd-dev/hgwd/host"
)

// Worker is a snapshot of one compute resource. Workers are transient: a
// snapshot is only valid for the dispatch cycle that took it.
type Worker struct {
	Name     string
	TotalRAM float64
	UsedRAM  float64
	Home     bool
}

// FromInfo converts a host inventory entry.
func FromInfo(w host.WorkerInfo) Worker {
	return Worker{Name: w.Name, TotalRAM: w.TotalRAM, UsedRAM: w.UsedRAM, Home: w.Home}
}

// Capacity is the worker capacity model. ReservedHomeRAM is headroom kept
// free on the home worker so orchestration scripts can still run there.
type Capacity struct {
	ReservedHomeRAM float64
}

// Threads computes how many threads of a script costing scriptRAM the worker
// can contribute right now. Never negative; zero when the worker is too small.
func (c Capacity) Threads(w Worker, scriptRAM float64) int {
	if scriptRAM <= 0 {
		return 0
	}
	free := w.TotalRAM - w.UsedRAM
	if w.Home {
		free -= c.ReservedHomeRAM
	}
	if free <= 0 {
		return 0
	}
	return int(math.Floor(free / scriptRAM))
}

// ThreadsFor is Threads looked up through the action table.
func (c Capacity) ThreadsFor(w Worker, kind host.ActionKind) (int, error) {
	spec, err := Action(kind)
	if err != nil {
		return 0, err
	}
	return c.Threads(w, spec.ScriptRAM), nil
}
