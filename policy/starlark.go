package policy

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/hgwd-dev/hgwd/host"
	"github.com/hgwd-dev/hgwd/sched"
)

// Script is a Starlark-backed policy. The script must define
//
//	def choose_target(candidates): ...
//
// where candidates is a list of dicts with keys name, security,
// security_min, money, money_max, and must return a candidate's name. It may
// also define
//
//	def strategy(target): ...
//
// returning one of "WG", "GW", "MWG", "MGW".
type Script struct {
	path       string
	chooseFn   starlark.Callable
	strategyFn starlark.Callable
}

// LoadScript parses and executes the policy file's top level.
func LoadScript(path string) (*Script, error) {
	return loadScript(path, nil)
}

// LoadScriptSource is LoadScript over in-memory source.
func LoadScriptSource(name, src string) (*Script, error) {
	return loadScript(name, src)
}

func loadScript(path string, src any) (*Script, error) {
	thread := &starlark.Thread{Name: "policy"}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, src, nil)
	if err != nil {
		return nil, fmt.Errorf("policy script %s: %w", path, err)
	}

	choose, ok := globals["choose_target"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("policy script %s: choose_target is not defined as a function", path)
	}
	s := &Script{path: path, chooseFn: choose}
	if fn, ok := globals["strategy"].(starlark.Callable); ok {
		s.strategyFn = fn
	}
	return s, nil
}

func (s *Script) ChooseTarget(candidates []host.TargetSnapshot) (string, error) {
	byName := make(map[string]host.TargetSnapshot, len(candidates))
	list := make([]starlark.Value, 0, len(candidates))
	for _, c := range candidates {
		byName[c.Name] = c
		list = append(list, candidateDict(c))
	}

	thread := &starlark.Thread{Name: "policy"}
	v, err := starlark.Call(thread, s.chooseFn, starlark.Tuple{starlark.NewList(list)}, nil)
	if err != nil {
		return "", fmt.Errorf("choose_target: %w", err)
	}
	name, ok := starlark.AsString(v)
	if !ok {
		return "", fmt.Errorf("choose_target returned %s, want a target name", v.Type())
	}
	if name == "" {
		return "", ErrNoTarget
	}
	c, ok := byName[name]
	if !ok {
		return "", fmt.Errorf("choose_target returned unknown target %q", name)
	}
	if c.Bankrupt() {
		return "", fmt.Errorf("choose_target picked bankrupt target %q", name)
	}
	return name, nil
}

func (s *Script) Strategy(target string) (sched.Strategy, bool) {
	if s.strategyFn == nil {
		return 0, false
	}
	thread := &starlark.Thread{Name: "policy"}
	v, err := starlark.Call(thread, s.strategyFn, starlark.Tuple{starlark.String(target)}, nil)
	if err != nil {
		return 0, false
	}
	name, ok := starlark.AsString(v)
	if !ok {
		return 0, false
	}
	st, err := sched.ParseStrategy(name)
	if err != nil {
		return 0, false
	}
	return st, true
}

func candidateDict(c host.TargetSnapshot) *starlark.Dict {
	d := starlark.NewDict(5)
	_ = d.SetKey(starlark.String("name"), starlark.String(c.Name))
	_ = d.SetKey(starlark.String("security"), starlark.Float(c.SecurityCurrent))
	_ = d.SetKey(starlark.String("security_min"), starlark.Float(c.SecurityMin))
	_ = d.SetKey(starlark.String("money"), starlark.Float(c.MoneyCurrent))
	_ = d.SetKey(starlark.String("money_max"), starlark.Float(c.MoneyMax))
	return d
}
