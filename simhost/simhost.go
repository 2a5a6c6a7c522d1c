// Package simhost is an in-memory implementation of host.Host with the full
// HGW effect model on a virtual clock. Schedulers running against it behave
// exactly as they would against the game, but Sleep advances simulated time
// instead of blocking, so whole prep/batch runs finish instantly in tests.
package simhost

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hgwd-dev/hgwd/hgw"
	"github.com/hgwd-dev/hgwd/host"
)

// Defaults for the effect model. Overridable per scenario.
const (
	DefaultPotencyPerThread = 0.01
	DefaultBaseAction       = 400 * time.Millisecond
	DefaultGrowthBase       = 0.05
)

// Duration ratios between the three actions, hack shortest.
const (
	hackDurationFactor   = 1.0
	growDurationFactor   = 3.2
	weakenDurationFactor = 4.0
)

type worker struct {
	name    string
	total   float64
	used    float64
	rooted  bool
	home    bool
	canRoot bool
}

type target struct {
	name        string
	security    float64
	securityMin float64
	money       float64
	moneyMax    float64
}

// pending is one launched action instance whose effect has not landed yet.
type pending struct {
	due     time.Time
	kind    host.ActionKind
	target  string
	worker  string
	threads int
	ram     float64
}

// SimHost simulates the game host. All methods are safe for concurrent use;
// the virtual clock only moves inside Sleep.
type SimHost struct {
	mu sync.Mutex

	now     time.Time
	workers map[string]*worker
	targets map[string]*target
	queue   []pending

	skill      int
	potency    float64
	baseAction time.Duration
	growthBase float64

	faults Faults
	rng    *rand.Rand

	launches int // total successful launches, for tests
}

// Faults injects failure modes in the style of a fault simulator: a launch
// failure probability and nothing else. Root revocation is done explicitly
// by tests via RevokeRoot.
type Faults struct {
	LaunchFailureRate float64
	Seed              int64
}

// New creates an empty simulated host at a fixed epoch.
func New() *SimHost {
	return &SimHost{
		now:        time.Unix(0, 0).UTC(),
		workers:    make(map[string]*worker),
		targets:    make(map[string]*target),
		skill:      1,
		potency:    DefaultPotencyPerThread,
		baseAction: DefaultBaseAction,
		growthBase: DefaultGrowthBase,
	}
}

// AddWorker registers a compute resource. canRoot controls whether
// AcquireRoot can succeed later when rooted is false.
func (s *SimHost) AddWorker(name string, totalRAM, usedRAM float64, rooted, home, canRoot bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[name] = &worker{
		name: name, total: totalRAM, used: usedRAM,
		rooted: rooted, home: home, canRoot: canRoot,
	}
}

// AddTarget registers a hackable resource.
func (s *SimHost) AddTarget(name string, security, securityMin, money, moneyMax float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[name] = &target{
		name: name, security: security, securityMin: securityMin,
		money: money, moneyMax: moneyMax,
	}
}

// SetPlayer configures skill and the per-thread hack potency.
func (s *SimHost) SetPlayer(skill int, potencyPerThread float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if skill > 0 {
		s.skill = skill
	}
	if potencyPerThread > 0 {
		s.potency = potencyPerThread
	}
}

// SetFaults installs fault injection with a deterministic seed.
func (s *SimHost) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
	s.rng = rand.New(rand.NewSource(f.Seed))
}

// RevokeRoot simulates losing root access mid-run.
func (s *SimHost) RevokeRoot(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[name]; ok {
		w.rooted = false
	}
}

// Launches reports how many launches have succeeded so far.
func (s *SimHost) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

func (s *SimHost) EnumerateWorkers() []host.WorkerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]host.WorkerInfo, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, host.WorkerInfo{
			Name: w.name, TotalRAM: w.total, UsedRAM: w.used,
			HasRoot: w.rooted, Home: w.home,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *SimHost) AcquireRoot(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[name]
	if !ok {
		return false
	}
	if w.rooted {
		return true
	}
	if w.canRoot {
		w.rooted = true
	}
	return w.rooted
}

func (s *SimHost) TargetSnapshot(name string) (host.TargetSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[name]
	if !ok {
		return host.TargetSnapshot{}, fmt.Errorf("unknown target %q", name)
	}
	return host.TargetSnapshot{
		Name:            t.name,
		SecurityCurrent: t.security,
		SecurityMin:     t.securityMin,
		MoneyCurrent:    t.money,
		MoneyMax:        t.moneyMax,
	}, nil
}

// LaunchAction reserves the worker's RAM for the action's duration and queues
// the effect at its completion time. Mirrors the host primitive: it can fail
// for capacity races, missing root, or injected faults, and a failure simply
// means zero threads contributed.
func (s *SimHost) LaunchAction(script, workerName string, threads int, targetName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, spec, err := actionForScript(script)
	if err != nil {
		return err
	}
	w, ok := s.workers[workerName]
	if !ok {
		return fmt.Errorf("unknown worker %q", workerName)
	}
	t, ok := s.targets[targetName]
	if !ok {
		return fmt.Errorf("unknown target %q", targetName)
	}
	if !w.rooted {
		return fmt.Errorf("no root on %q", workerName)
	}
	if threads <= 0 {
		return fmt.Errorf("cannot launch %d threads", threads)
	}
	need := float64(threads) * spec.ScriptRAM
	if w.used+need > w.total {
		return fmt.Errorf("insufficient RAM on %q: need %.2f, free %.2f", workerName, need, w.total-w.used)
	}
	if s.rng != nil && s.faults.LaunchFailureRate > 0 && s.rng.Float64() < s.faults.LaunchFailureRate {
		return fmt.Errorf("injected launch failure on %q", workerName)
	}

	w.used += need
	s.queue = append(s.queue, pending{
		due:     s.now.Add(s.durationLocked(t, kind)),
		kind:    kind,
		target:  targetName,
		worker:  workerName,
		threads: threads,
		ram:     need,
	})
	s.launches++
	return nil
}

func (s *SimHost) ActionDuration(targetName string, kind host.ActionKind) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[targetName]
	if !ok {
		return 0, fmt.Errorf("unknown target %q", targetName)
	}
	return s.durationLocked(t, kind), nil
}

// durationLocked scales the base action time by the target's current
// security and down by player skill, with the usual hack < grow < weaken
// ordering.
func (s *SimHost) durationLocked(t *target, kind host.ActionKind) time.Duration {
	factor := hackDurationFactor
	switch kind {
	case host.Grow:
		factor = growDurationFactor
	case host.Weaken:
		factor = weakenDurationFactor
	}
	secScale := 1 + t.security/20
	skillScale := 1 + float64(s.skill)/100
	d := float64(s.baseAction) * factor * secScale / skillScale
	return time.Duration(d)
}

func (s *SimHost) HackPotency(targetName string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[targetName]; !ok {
		return 0, fmt.Errorf("unknown target %q", targetName)
	}
	return s.potency, nil
}

func (s *SimHost) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Sleep advances the virtual clock by d, landing every queued effect that
// falls due along the way. It never blocks real time.
func (s *SimHost) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
	s.applyDueLocked()
	return nil
}

// applyDueLocked lands queued effects in completion order.
func (s *SimHost) applyDueLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool { return s.queue[i].due.Before(s.queue[j].due) })
	i := 0
	for ; i < len(s.queue); i++ {
		p := s.queue[i]
		if p.due.After(s.now) {
			break
		}
		if w, ok := s.workers[p.worker]; ok {
			w.used = math.Max(0, w.used-p.ram)
		}
		t, ok := s.targets[p.target]
		if !ok {
			continue
		}
		switch p.kind {
		case host.Weaken:
			t.security = math.Max(t.securityMin, t.security+float64(p.threads)*weakenSecurityDelta())
		case host.Grow:
			t.money = math.Min(t.moneyMax, (t.money+float64(p.threads))*s.growFactor(t, p.threads))
			t.security += float64(p.threads) * growSecurityDelta()
		case host.Hack:
			stolen := math.Min(t.money, t.money*s.potency*float64(p.threads))
			t.money -= stolen
			t.security += float64(p.threads) * hackSecurityDelta()
		}
	}
	s.queue = s.queue[i:]
}

// growFactor compounds per thread and shrinks as security rises.
func (s *SimHost) growFactor(t *target, threads int) float64 {
	rate := s.growthBase / math.Max(1, t.security)
	return math.Pow(1+rate, float64(threads))
}

func actionForScript(script string) (host.ActionKind, hgw.ActionSpec, error) {
	for _, spec := range hgw.Actions() {
		if spec.Script == script {
			return spec.Kind, spec, nil
		}
	}
	return 0, hgw.ActionSpec{}, fmt.Errorf("unknown action script %q", script)
}

func weakenSecurityDelta() float64 { return mustAction(host.Weaken).SecurityPerRun }
func growSecurityDelta() float64   { return mustAction(host.Grow).SecurityPerRun }
func hackSecurityDelta() float64   { return mustAction(host.Hack).SecurityPerRun }

func mustAction(kind host.ActionKind) hgw.ActionSpec {
	spec, err := hgw.Action(kind)
	if err != nil {
		panic(err)
	}
	return spec
}
