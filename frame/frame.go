// Package frame is the tabular value kind understood by the csv, feather and
// parquet codecs: a row index plus named, typed columns of equal length.
package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind is the element type of a column.
type Kind uint8

const (
	Int Kind = iota + 1
	Float
	String
	Bool
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Bool:
		return "bool"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

var ErrShape = errors.New("frame: invalid shape")

// Column holds one typed column. Values are int64, float64, string or bool
// according to Kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Frame is an ordered set of columns sharing one row index.
type Frame struct {
	Index   []string
	Columns []Column
}

// New builds a frame and validates it. A nil index is replaced by the
// positional one ("0", "1", ...).
func New(index []string, cols ...Column) (*Frame, error) {
	f := &Frame{Index: index, Columns: cols}
	if f.Index == nil {
		f.Index = Positional(rowsOf(cols))
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Positional returns "0".."n-1".
func Positional(n int) []string {
	idx := make([]string, n)
	for i := range idx {
		idx[i] = strconv.Itoa(i)
	}
	return idx
}

func rowsOf(cols []Column) int {
	if len(cols) == 0 {
		return 0
	}
	return len(cols[0].Values)
}

// Ints, Floats, Strings and Bools are column constructors.
func Ints(name string, vs ...int64) Column {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return Column{Name: name, Kind: Int, Values: out}
}

func Floats(name string, vs ...float64) Column {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return Column{Name: name, Kind: Float, Values: out}
}

func Strings(name string, vs ...string) Column {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return Column{Name: name, Kind: String, Values: out}
}

func Bools(name string, vs ...bool) Column {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return Column{Name: name, Kind: Bool, Values: out}
}

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.Index) }

// Column returns the column named name.
func (f *Frame) Column(name string) (Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks that every column matches the index length, names are
// unique and non-empty, and every value has the column's Go type.
func (f *Frame) Validate() error {
	seen := make(map[string]struct{}, len(f.Columns))
	for _, c := range f.Columns {
		if c.Name == "" {
			return fmt.Errorf("%w: empty column name", ErrShape)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrShape, c.Name)
		}
		seen[c.Name] = struct{}{}
		if len(c.Values) != len(f.Index) {
			return fmt.Errorf("%w: column %q has %d rows, index has %d", ErrShape, c.Name, len(c.Values), len(f.Index))
		}
		for i, v := range c.Values {
			if !c.Kind.accepts(v) {
				return fmt.Errorf("%w: column %q row %d: %T is not %s", ErrShape, c.Name, i, v, c.Kind)
			}
		}
	}
	return nil
}

func (k Kind) accepts(v any) bool {
	switch k {
	case Int:
		_, ok := v.(int64)
		return ok
	case Float:
		_, ok := v.(float64)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	case Bool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

// Equal compares index, column order, names, kinds and values. NaN equals NaN.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if len(f.Index) != len(o.Index) || len(f.Columns) != len(o.Columns) {
		return false
	}
	for i := range f.Index {
		if f.Index[i] != o.Index[i] {
			return false
		}
	}
	for i, c := range f.Columns {
		d := o.Columns[i]
		if c.Name != d.Name || c.Kind != d.Kind || len(c.Values) != len(d.Values) {
			return false
		}
		for j := range c.Values {
			if !sameValue(c.Values[j], d.Values[j]) {
				return false
			}
		}
	}
	return true
}

func sameValue(a, b any) bool {
	fa, ok1 := a.(float64)
	fb, ok2 := b.(float64)
	if ok1 && ok2 && math.IsNaN(fa) && math.IsNaN(fb) {
		return true
	}
	return a == b
}

// From accepts a Frame or *Frame.
func From(v any) (*Frame, bool) {
	switch f := v.(type) {
	case *Frame:
		return f, f != nil
	case Frame:
		return &f, true
	}
	return nil, false
}
