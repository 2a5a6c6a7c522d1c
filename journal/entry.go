// Package journal records what the schedulers did: one entry per dispatch,
// prep pass, or batch cycle. Entries are msgpack-encoded and identified by a
// farm hash of their encoded payload.
package journal

import (
	"bytes"
	"io"
	"time"

	"github.com/dgryski/go-farm"
	"github.com/shamaton/msgpack/v2"
)

// Entry kinds.
const (
	KindDispatch = "dispatch"
	KindPrep     = "prep"
	KindCycle    = "cycle"
)

// Entry is one journal record. ID is derived from the payload, so identical
// records collapse to the same ID.
type Entry struct {
	ID     uint64
	RunID  string
	Seq    int
	At     time.Time
	Kind   string
	Target string
	Action string

	Threads int
	Workers int
	Wait    time.Duration

	SecurityBefore float64
	SecurityAfter  float64
	MoneyBefore    float64
	MoneyAfter     float64
}

type payload struct {
	RunID  string
	Seq    int
	At     int64
	Kind   string
	Target string
	Action string

	Threads int
	Workers int
	WaitMS  int64

	SecurityBefore float64
	SecurityAfter  float64
	MoneyBefore    float64
	MoneyAfter     float64
}

func (e *Entry) toPayload() payload {
	return payload{
		RunID:          e.RunID,
		Seq:            e.Seq,
		At:             e.At.UnixMilli(),
		Kind:           e.Kind,
		Target:         e.Target,
		Action:         e.Action,
		Threads:        e.Threads,
		Workers:        e.Workers,
		WaitMS:         e.Wait.Milliseconds(),
		SecurityBefore: e.SecurityBefore,
		SecurityAfter:  e.SecurityAfter,
		MoneyBefore:    e.MoneyBefore,
		MoneyAfter:     e.MoneyAfter,
	}
}

func (e *Entry) fromPayload(p payload) {
	e.RunID = p.RunID
	e.Seq = p.Seq
	e.At = time.UnixMilli(p.At).UTC()
	e.Kind = p.Kind
	e.Target = p.Target
	e.Action = p.Action
	e.Threads = p.Threads
	e.Workers = p.Workers
	e.Wait = time.Duration(p.WaitMS) * time.Millisecond
	e.SecurityBefore = p.SecurityBefore
	e.SecurityAfter = p.SecurityAfter
	e.MoneyBefore = p.MoneyBefore
	e.MoneyAfter = p.MoneyAfter
}

// Encode writes the entry's payload and stamps its ID.
func (e *Entry) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if err := msgpack.MarshalWrite(&buf, e.toPayload()); err != nil {
		return err
	}
	e.ID = farm.Hash64(buf.Bytes())
	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reads one payload and recomputes the ID from the raw bytes.
func (e *Entry) Decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var p payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return err
	}
	e.fromPayload(p)
	e.ID = farm.Hash64(data)
	return nil
}

// EncodedBytes returns the payload bytes and stamps the ID, for stores that
// keep the blob alongside indexed columns.
func (e *Entry) EncodedBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
