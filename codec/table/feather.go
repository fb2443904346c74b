package table

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Feather writes the frame as an Arrow IPC stream.
type Feather struct{}

func (Feather) Encode(v any) ([]byte, error) {
	f, err := asFrame(v)
	if err != nil {
		return nil, err
	}
	mem := memory.NewGoAllocator()
	rec, err := toRecord(f, mem)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Feather) Decode(b []byte) (any, error) {
	r, err := ipc.NewReader(bytes.NewReader(b), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, err
	}
	defer r.Release()

	c, err := newCollector(r.Schema())
	if err != nil {
		return nil, err
	}
	for r.Next() {
		if err := c.add(r.Record()); err != nil {
			return nil, err
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return c.frame()
}
