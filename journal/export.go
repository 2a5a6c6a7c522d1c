package journal

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/shamaton/msgpack/v2"
)

// Export writes entries as a zstd-compressed stream of msgpack payloads.
func Export(w io.Writer, entries []Entry) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	for i := range entries {
		if err := entries[i].Encode(zw); err != nil {
			_ = zw.Close()
			return fmt.Errorf("encoding entry %d: %w", i, err)
		}
	}
	return zw.Close()
}

// Import reads a stream produced by Export.
func Import(r io.Reader) ([]Entry, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out []Entry
	for {
		var p payload
		if err := msgpack.UnmarshalRead(zr, &p); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return out, nil
			}
			return nil, err
		}
		var e Entry
		e.fromPayload(p)
		_, _ = e.EncodedBytes() // restamp ID from the payload
		out = append(out, e)
	}
}
