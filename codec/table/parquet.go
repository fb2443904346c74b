package table

import (
	"bytes"
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Parquet writes the frame as a single row group parquet file with the
// arrow schema stored alongside.
type Parquet struct{}

func (Parquet) Encode(v any) ([]byte, error) {
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

	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	err = pqarrow.WriteTable(tbl, &buf, max(int64(f.Len()), 1),
		parquet.NewWriterProperties(parquet.WithAllocator(mem)),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Parquet) Decode(b []byte) (any, error) {
	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(b),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	c, err := newCollector(tbl.Schema())
	if err != nil {
		return nil, err
	}
	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()
	for tr.Next() {
		if err := c.add(tr.Record()); err != nil {
			return nil, err
		}
	}
	if err := tr.Err(); err != nil {
		return nil, err
	}
	return c.frame()
}
