package simhost

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario describes a simulated world: the fleet, the targets, the player,
// and any injected faults.
type Scenario struct {
	PlayerSkill      int     `yaml:"player_skill"`
	PotencyPerThread float64 `yaml:"potency_per_thread"`
	BaseActionMs     int     `yaml:"base_action_ms"`

	Workers []ScenarioWorker `yaml:"workers"`
	Targets []ScenarioTarget `yaml:"targets"`

	Faults ScenarioFaults `yaml:"faults"`
}

type ScenarioWorker struct {
	Name    string  `yaml:"name"`
	RAM     float64 `yaml:"ram"`
	Used    float64 `yaml:"used"`
	Rooted  bool    `yaml:"rooted"`
	Home    bool    `yaml:"home"`
	CanRoot bool    `yaml:"can_root"`
}

type ScenarioTarget struct {
	Name        string  `yaml:"name"`
	Security    float64 `yaml:"security"`
	SecurityMin float64 `yaml:"security_min"`
	Money       float64 `yaml:"money"`
	MoneyMax    float64 `yaml:"money_max"`
}

type ScenarioFaults struct {
	LaunchFailureRate float64 `yaml:"launch_failure_rate"`
	Seed              int64   `yaml:"seed"`
}

// LoadScenario parses a scenario file.
func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, sc.validate()
}

func (sc Scenario) validate() error {
	seen := make(map[string]bool)
	for _, w := range sc.Workers {
		if w.Name == "" {
			return fmt.Errorf("worker with empty name")
		}
		if seen[w.Name] {
			return fmt.Errorf("duplicate worker %q", w.Name)
		}
		seen[w.Name] = true
		if w.RAM < 0 || w.Used < 0 || w.Used > w.RAM {
			return fmt.Errorf("worker %q: used RAM %v outside [0, %v]", w.Name, w.Used, w.RAM)
		}
	}
	for _, t := range sc.Targets {
		if t.Name == "" {
			return fmt.Errorf("target with empty name")
		}
		if t.SecurityMin < 0 || t.Security < t.SecurityMin {
			return fmt.Errorf("target %q: security %v below minimum %v", t.Name, t.Security, t.SecurityMin)
		}
		if t.Money < 0 || t.Money > t.MoneyMax {
			return fmt.Errorf("target %q: money %v outside [0, %v]", t.Name, t.Money, t.MoneyMax)
		}
	}
	if r := sc.Faults.LaunchFailureRate; r < 0 || r > 1 {
		return fmt.Errorf("launch failure rate %v outside [0, 1]", r)
	}
	return nil
}

// Build constructs a SimHost from the scenario.
func (sc Scenario) Build() *SimHost {
	s := New()
	s.SetPlayer(sc.PlayerSkill, sc.PotencyPerThread)
	if sc.BaseActionMs > 0 {
		s.baseAction = time.Duration(sc.BaseActionMs) * time.Millisecond
	}
	for _, w := range sc.Workers {
		s.AddWorker(w.Name, w.RAM, w.Used, w.Rooted, w.Home, w.CanRoot)
	}
	for _, t := range sc.Targets {
		s.AddTarget(t.Name, t.Security, t.SecurityMin, t.Money, t.MoneyMax)
	}
	if sc.Faults.LaunchFailureRate > 0 {
		s.SetFaults(Faults(sc.Faults))
	}
	return s
}
