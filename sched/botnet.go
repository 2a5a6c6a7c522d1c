// Package sched contains the scheduling core: the action dispatcher, the prep
// strategies, the sequential batcher, and the botnet assembler that feeds
// them workers.
package sched

import (
	"fmt"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/host"
)

// Assembler produces the worker set for one scheduling cycle. It is
// recomputed every cycle: workers are reclaimed, destroyed, and acquired
// between cycles, so nothing here may be cached.
type Assembler struct {
	Host     host.Host
	Capacity hgw.Capacity

	// AutoRoot attempts root acquisition on unrooted workers during
	// assembly. Acquisition is idempotent on the host side.
	AutoRoot bool

	// Names restricts the botnet to a fixed partition of the fleet. Nil
	// means every worker. Partitions keep concurrently running batchers
	// from double-booking workers; the dispatcher does not enforce this.
	Names []string
}

// Assemble scans the inventory and returns the currently usable workers:
// rooted, with free RAM, inside this assembler's partition.
func (a *Assembler) Assemble() []hgw.Worker {
	var allow map[string]bool
	if a.Names != nil {
		allow = make(map[string]bool, len(a.Names))
		for _, n := range a.Names {
			allow[n] = true
		}
	}

	var out []hgw.Worker
	for _, info := range a.Host.EnumerateWorkers() {
		if allow != nil && !allow[info.Name] {
			continue
		}
		if !info.HasRoot {
			if !a.AutoRoot || !a.Host.AcquireRoot(info.Name) {
				continue
			}
		}
		if info.TotalRAM-info.UsedRAM <= 0 {
			continue
		}
		out = append(out, hgw.FromInfo(info))
	}
	return out
}

// PartitionFleet validates that the named groups are disjoint and that every
// named worker exists in the inventory. Batchers started over overlapping
// groups would double-book workers.
func PartitionFleet(inventory []host.WorkerInfo, groups map[string][]string) error {
	known := make(map[string]bool, len(inventory))
	for _, w := range inventory {
		known[w.Name] = true
	}
	claimed := make(map[string]string)
	for target, names := range groups {
		for _, n := range names {
			if !known[n] {
				return fmt.Errorf("partition for %s names unknown worker %q", target, n)
			}
			if prev, ok := claimed[n]; ok && prev != target {
				return fmt.Errorf("worker %q claimed by both %s and %s", n, prev, target)
			}
			claimed[n] = target
		}
	}
	return nil
}
