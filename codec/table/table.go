// Package table holds the codecs for frame values: CSV, Arrow IPC (feather)
// and Parquet. All of them encode from a frame.Frame or *frame.Frame and
// decode to *frame.Frame.
package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/unkn0wn-root/cachette/frame"
)

// IndexField names the column that carries the row index in columnar formats.
const IndexField = "__index__"

var ErrNotFrame = errors.New("table: value is not a frame")

func asFrame(v any) (*frame.Frame, error) {
	f, ok := frame.From(v)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotFrame, v)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if _, clash := f.Column(IndexField); clash {
		return nil, fmt.Errorf("table: column name %q is reserved", IndexField)
	}
	return f, nil
}

func arrowType(k frame.Kind) (arrow.DataType, error) {
	switch k {
	case frame.Int:
		return arrow.PrimitiveTypes.Int64, nil
	case frame.Float:
		return arrow.PrimitiveTypes.Float64, nil
	case frame.String:
		return arrow.BinaryTypes.String, nil
	case frame.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	}
	return nil, fmt.Errorf("table: unsupported column kind %s", k)
}

func kindOf(dt arrow.DataType) (frame.Kind, error) {
	switch dt.ID() {
	case arrow.INT64, arrow.INT32, arrow.INT16, arrow.INT8:
		return frame.Int, nil
	case arrow.FLOAT64, arrow.FLOAT32:
		return frame.Float, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return frame.String, nil
	case arrow.BOOL:
		return frame.Bool, nil
	}
	return 0, fmt.Errorf("table: unsupported arrow type %s", dt)
}

// toRecord lays the frame out as one record: the index first, then columns.
// The caller releases the record.
func toRecord(f *frame.Frame, mem memory.Allocator) (arrow.Record, error) {
	fields := make([]arrow.Field, 0, len(f.Columns)+1)
	fields = append(fields, arrow.Field{Name: IndexField, Type: arrow.BinaryTypes.String})
	for _, c := range f.Columns {
		dt, err := arrowType(c.Kind)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: dt})
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	b.Field(0).(*array.StringBuilder).AppendValues(f.Index, nil)
	for i, c := range f.Columns {
		switch fb := b.Field(i + 1).(type) {
		case *array.Int64Builder:
			for _, v := range c.Values {
				fb.Append(v.(int64))
			}
		case *array.Float64Builder:
			for _, v := range c.Values {
				fb.Append(v.(float64))
			}
		case *array.StringBuilder:
			for _, v := range c.Values {
				fb.Append(v.(string))
			}
		case *array.BooleanBuilder:
			for _, v := range c.Values {
				fb.Append(v.(bool))
			}
		default:
			return nil, fmt.Errorf("table: unexpected builder %T", fb)
		}
	}
	return b.NewRecord(), nil
}

// collector rebuilds a frame from a stream of records sharing one schema.
type collector struct {
	index    []string
	hasIndex bool
	cols     []frame.Column
	slot     []int // schema field -> cols position, -1 for the index
}

func newCollector(schema *arrow.Schema) (*collector, error) {
	c := &collector{}
	for _, fd := range schema.Fields() {
		if fd.Name == IndexField {
			c.hasIndex = true
			c.index = []string{}
			c.slot = append(c.slot, -1)
			continue
		}
		k, err := kindOf(fd.Type)
		if err != nil {
			return nil, err
		}
		c.slot = append(c.slot, len(c.cols))
		c.cols = append(c.cols, frame.Column{Name: fd.Name, Kind: k, Values: []any{}})
	}
	return c, nil
}

func (c *collector) add(rec arrow.Record) error {
	for i, col := range rec.Columns() {
		for j := 0; j < col.Len(); j++ {
			if col.IsNull(j) {
				return fmt.Errorf("table: null value in column %q", rec.ColumnName(i))
			}
			v, err := valueAt(col, j)
			if err != nil {
				return err
			}
			if p := c.slot[i]; p >= 0 {
				c.cols[p].Values = append(c.cols[p].Values, v)
				continue
			}
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("table: index column holds %T", v)
			}
			c.index = append(c.index, s)
		}
	}
	return nil
}

func (c *collector) frame() (*frame.Frame, error) {
	if !c.hasIndex {
		return frame.New(nil, c.cols...)
	}
	return frame.New(c.index, c.cols...)
}

func valueAt(col arrow.Array, i int) (any, error) {
	switch a := col.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.String:
		return strings.Clone(a.Value(i)), nil
	case *array.LargeString:
		return strings.Clone(a.Value(i)), nil
	case *array.Boolean:
		return a.Value(i), nil
	}
	return nil, fmt.Errorf("table: unsupported array %T", col)
}
