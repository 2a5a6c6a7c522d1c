package journal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gookit/color"
)

// TargetSummary aggregates a run's entries for one target.
type TargetSummary struct {
	Target      string
	PrepPasses  int
	Cycles      int
	Dispatches  int
	Threads     int
	MoneyStolen float64
	TimeWaiting time.Duration
}

// Summarize folds entries into per-target summaries, sorted by target name.
func Summarize(entries []Entry) []TargetSummary {
	byTarget := make(map[string]*TargetSummary)
	for _, e := range entries {
		s, ok := byTarget[e.Target]
		if !ok {
			s = &TargetSummary{Target: e.Target}
			byTarget[e.Target] = s
		}
		switch e.Kind {
		case KindPrep:
			s.PrepPasses++
		case KindCycle:
			s.Cycles++
			if d := e.MoneyBefore - e.MoneyAfter; d > 0 {
				s.MoneyStolen += d
			}
		case KindDispatch:
			s.Dispatches++
			s.Threads += e.Threads
			s.TimeWaiting += e.Wait
		}
	}

	out := make([]TargetSummary, 0, len(byTarget))
	for _, s := range byTarget {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// FormatRunReport renders the end-of-run report for a set of entries.
func FormatRunReport(entries []Entry) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint("================================================================================"))
	b.WriteString("\n")
	b.WriteString(color.Cyan.Sprint("RUN REPORT"))
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint("================================================================================"))
	b.WriteString("\n")

	if len(entries) == 0 {
		b.WriteString("  (no journal entries recorded)\n")
		return b.String()
	}

	var totalStolen float64
	for _, s := range Summarize(entries) {
		b.WriteString(color.Bold.Sprint("Target:     "))
		b.WriteString(color.Yellow.Sprintf("%s\n", s.Target))
		b.WriteString(color.Bold.Sprint("Cycles:     "))
		b.WriteString(fmt.Sprintf("%d (%d prep passes, %d dispatches)\n", s.Cycles, s.PrepPasses, s.Dispatches))
		b.WriteString(color.Bold.Sprint("Threads:    "))
		b.WriteString(fmt.Sprintf("%d\n", s.Threads))
		b.WriteString(color.Bold.Sprint("Waited:     "))
		b.WriteString(fmt.Sprintf("%s\n", s.TimeWaiting.Round(time.Millisecond)))
		b.WriteString(color.Bold.Sprint("Stolen:     "))
		b.WriteString(color.Green.Sprintf("$%.2f\n", s.MoneyStolen))
		b.WriteString(color.Gray.Sprint("--------------------------------------------------------------------------------"))
		b.WriteString("\n")
		totalStolen += s.MoneyStolen
	}

	b.WriteString(color.Bold.Sprint("Total stolen: "))
	b.WriteString(color.Green.Sprintf("$%.2f\n", totalStolen))
	return b.String()
}
