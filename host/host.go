// Package host defines the interface between the scheduler core and the game
// host. Everything behind this interface (network scans, process launches,
// the security/money model) is owned by the host; the core only consumes
// snapshots and primitives.
package host

import (
	"context"
	"time"
)

// ActionKind identifies one of the three mutually exclusive actions a worker
// thread can contribute to.
type ActionKind int

const (
	Weaken ActionKind = iota
	Grow
	Hack
)

func (k ActionKind) String() string {
	switch k {
	case Weaken:
		return "weaken"
	case Grow:
		return "grow"
	case Hack:
		return "hack"
	}
	return "unknown"
}

// WorkerInfo is one entry of the host's inventory scan.
type WorkerInfo struct {
	Name     string
	TotalRAM float64 // GB
	UsedRAM  float64 // GB
	HasRoot  bool
	Home     bool
}

// TargetSnapshot is a point-in-time read of a target's state. It is stale the
// moment it is returned; callers must re-read rather than cache.
type TargetSnapshot struct {
	Name            string
	SecurityCurrent float64
	SecurityMin     float64
	MoneyCurrent    float64
	MoneyMax        float64
}

// Bankrupt reports whether the target can never yield money. Bankrupt targets
// must not be selected for hack cycling.
func (t TargetSnapshot) Bankrupt() bool {
	return t.MoneyMax <= 0
}

// Host is the collaborator surface the core depends on.
type Host interface {
	// EnumerateWorkers returns the current inventory. Workers are transient;
	// the result must be re-fetched every scheduling cycle.
	EnumerateWorkers() []WorkerInfo

	// AcquireRoot makes a best-effort, idempotent root-access attempt and
	// reports whether the worker is rooted afterwards.
	AcquireRoot(worker string) bool

	// TargetSnapshot reads the target's current state.
	TargetSnapshot(target string) (TargetSnapshot, error)

	// LaunchAction starts threads of an action script on a worker against a
	// target. A failure means the worker contributed zero threads; it is
	// never retried by the core.
	LaunchAction(script string, worker string, threads int, target string) error

	// ActionDuration reports how long the action would take if started now,
	// given the target's current security and the player's skill.
	ActionDuration(target string, kind ActionKind) (time.Duration, error)

	// HackPotency reports the fraction of a target's current money removed
	// per hack thread at the player's current skill.
	HackPotency(target string) (float64, error)

	// Now is the host's clock. All scheduling timestamps come from here so a
	// simulated host can run on virtual time.
	Now() time.Time

	// Sleep suspends the caller for d of host time, or until ctx is done.
	// This is the core's only blocking primitive.
	Sleep(ctx context.Context, d time.Duration) error
}
