package hgw

import (
	"time"

	"github.com/hgwd-dev/hgwd/host"
)

// DefaultSafetyBuffer absorbs simulation-tick jitter between the host's
// reported action duration and the instant the effect actually lands.
const DefaultSafetyBuffer = 200 * time.Millisecond

// Oracle answers questions about a target's current state. Every call reads a
// fresh snapshot; the target moves continuously underneath us, so caching
// here would feed the schedulers stale decisions.
type Oracle struct {
	Host         host.Host
	SafetyBuffer time.Duration
}

func NewOracle(h host.Host, buffer time.Duration) *Oracle {
	if buffer <= 0 {
		buffer = DefaultSafetyBuffer
	}
	return &Oracle{Host: h, SafetyBuffer: buffer}
}

func (o *Oracle) Snapshot(target string) (host.TargetSnapshot, error) {
	return o.Host.TargetSnapshot(target)
}

// HasMaxMoney reports whether the target's money is at its ceiling.
func (o *Oracle) HasMaxMoney(target string) (bool, error) {
	t, err := o.Host.TargetSnapshot(target)
	if err != nil {
		return false, err
	}
	return t.MoneyCurrent >= t.MoneyMax, nil
}

// HasMinSecurity reports whether the target's security is at its floor.
func (o *Oracle) HasMinSecurity(target string) (bool, error) {
	t, err := o.Host.TargetSnapshot(target)
	if err != nil {
		return false, err
	}
	return t.SecurityCurrent <= t.SecurityMin, nil
}

// WaitTime is how long a dispatch started now should suspend before the
// action's effects are guaranteed visible.
func (o *Oracle) WaitTime(target string, kind host.ActionKind) (time.Duration, error) {
	d, err := o.Host.ActionDuration(target, kind)
	if err != nil {
		return 0, err
	}
	return d + o.SafetyBuffer, nil
}
