package journal

import "sync"

// Recorder is the write side consumed by the schedulers. Record must never
// block the scheduling loop and must tolerate being called after Close.
type Recorder interface {
	Record(Entry)
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(Entry) {}

// Memory keeps entries in order in memory. Used by tests and by the run
// report when no database is configured.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(e Entry) {
	_, _ = e.EncodedBytes() // stamps e.ID
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

// Entries returns a copy of everything recorded so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
