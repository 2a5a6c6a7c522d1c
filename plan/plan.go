// Package plan loads the TOML run plan: which targets to batch, with which
// strategy, steal fraction, and fleet partition. The plan is the explicit
// configuration the schedulers are constructed from; nothing in the core
// reads ambient globals.
package plan

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/hgwd-dev/hgwd/sched"
)

// Plan is the top-level run plan.
type Plan struct {
	Run     RunDetails            `toml:"run"`
	Targets map[string]TargetSpec `toml:"targets"`
}

// RunDetails are the knobs shared by every batcher in the run.
type RunDetails struct {
	StealFraction   float64 `toml:"steal_fraction"`
	ReservedHomeRAM float64 `toml:"reserved_home_ram"`
	SafetyBufferMs  int     `toml:"safety_buffer_ms"`
	RetryDelayMs    int     `toml:"retry_delay_ms"`
	AutoRoot        bool    `toml:"auto_root"`
	Journal         string  `toml:"journal,omitempty"`
	Policy          string  `toml:"policy,omitempty"`
}

// TargetSpec configures one batcher.
type TargetSpec struct {
	Strategy      string   `toml:"strategy,omitempty"`
	StealFraction float64  `toml:"steal_fraction,omitempty"`
	Workers       []string `toml:"workers,omitempty"`
}

func (r RunDetails) SafetyBuffer() time.Duration {
	return time.Duration(r.SafetyBufferMs) * time.Millisecond
}

func (r RunDetails) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

func parse(f io.Reader) (*Plan, error) {
	var out Plan
	_, err := toml.NewDecoder(f).Decode(&out)
	return &out, err
}

// Load reads and validates a plan file. Relative journal and policy paths
// are resolved against the plan file's directory.
func Load(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if p.Run.Journal != "" && !filepath.IsAbs(p.Run.Journal) {
		p.Run.Journal = filepath.Clean(filepath.Join(dir, p.Run.Journal))
	}
	if p.Run.Policy != "" && !filepath.IsAbs(p.Run.Policy) {
		p.Run.Policy = filepath.Clean(filepath.Join(dir, p.Run.Policy))
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Validate checks fractions, strategies, and that no worker appears in two
// target partitions.
func (p *Plan) Validate() error {
	if len(p.Targets) == 0 && p.Run.Policy == "" {
		return fmt.Errorf("no targets and no policy script to choose one")
	}
	if err := checkFraction("run.steal_fraction", p.Run.StealFraction); err != nil {
		return err
	}
	if p.Run.ReservedHomeRAM < 0 {
		return fmt.Errorf("run.reserved_home_ram must not be negative")
	}

	claimed := make(map[string]string)
	for name, t := range p.Targets {
		if t.Strategy != "" {
			if _, err := sched.ParseStrategy(t.Strategy); err != nil {
				return fmt.Errorf("target %s: %w", name, err)
			}
		}
		if t.StealFraction != 0 {
			if err := checkFraction("target "+name+" steal_fraction", t.StealFraction); err != nil {
				return err
			}
		}
		for _, w := range t.Workers {
			if prev, ok := claimed[w]; ok {
				return fmt.Errorf("worker %q assigned to both %s and %s", w, prev, name)
			}
			claimed[w] = name
		}
	}
	return nil
}

// Steal returns the effective steal fraction for a target.
func (p *Plan) Steal(target string) float64 {
	if t, ok := p.Targets[target]; ok && t.StealFraction > 0 {
		return t.StealFraction
	}
	return p.Run.StealFraction
}

// Strategy returns the effective prep strategy for a target.
func (p *Plan) Strategy(target string) (sched.Strategy, error) {
	t, ok := p.Targets[target]
	if !ok || t.Strategy == "" {
		return sched.WeakenGrow, nil
	}
	return sched.ParseStrategy(t.Strategy)
}

func checkFraction(what string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s %v outside (0, 1]", what, v)
	}
	return nil
}
