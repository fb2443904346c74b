package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/cachette/frame"
)

// CSV writes a header row (IndexField then column names) followed by one row
// per index entry. Column kinds are not stored; Decode infers them per column
// (int, then float, then bool, then string).
type CSV struct{}

func (CSV) Encode(v any) ([]byte, error) {
	f, err := asFrame(v)
	if err != nil {
		return nil, err
	}

	if len(f.Columns) == 0 {
		// a lone empty field is written as a blank line, which readers skip
		for _, idx := range f.Index {
			if idx == "" {
				return nil, fmt.Errorf("%w: csv cannot hold an empty index label without columns", frame.ErrShape)
			}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	row := make([]string, len(f.Columns)+1)
	row[0] = IndexField
	for i, c := range f.Columns {
		row[i+1] = c.Name
	}
	if err := w.Write(row); err != nil {
		return nil, err
	}
	for r, idx := range f.Index {
		row[0] = idx
		for i, c := range f.Columns {
			row[i+1] = formatCell(c.Values[r])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (CSV) Decode(b []byte) (any, error) {
	r := csv.NewReader(bytes.NewReader(b))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("csv: missing header")
	}

	header, body := rows[0], rows[1:]
	if header[0] != IndexField {
		return nil, fmt.Errorf("csv: header must start with %q", IndexField)
	}
	index := make([]string, len(body))
	for i, row := range body {
		index[i] = row[0]
	}

	cols := make([]frame.Column, 0, len(header)-1)
	for ci, name := range header[1:] {
		cells := make([]string, len(body))
		for i, row := range body {
			cells[i] = row[ci+1]
		}
		col, err := inferColumn(name, cells)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return frame.New(index, cols...)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		// keep floats distinguishable from ints on the way back
		if !math.IsInf(x, 0) && !math.IsNaN(x) && !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func inferColumn(name string, cells []string) (frame.Column, error) {
	if len(cells) == 0 {
		return frame.Column{Name: name, Kind: frame.String, Values: []any{}}, nil
	}
	if vs, ok := parseAll(cells, func(s string) (any, error) { return strconv.ParseInt(s, 10, 64) }); ok {
		return frame.Column{Name: name, Kind: frame.Int, Values: vs}, nil
	}
	if vs, ok := parseAll(cells, func(s string) (any, error) { return strconv.ParseFloat(s, 64) }); ok {
		return frame.Column{Name: name, Kind: frame.Float, Values: vs}, nil
	}
	if vs, ok := parseAll(cells, parseBool); ok {
		return frame.Column{Name: name, Kind: frame.Bool, Values: vs}, nil
	}
	vs := make([]any, len(cells))
	for i, s := range cells {
		vs[i] = s
	}
	return frame.Column{Name: name, Kind: frame.String, Values: vs}, nil
}

func parseAll(cells []string, parse func(string) (any, error)) ([]any, bool) {
	out := make([]any, len(cells))
	for i, s := range cells {
		v, err := parse(s)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func parseBool(s string) (any, error) {
	switch s {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	}
	return nil, strconv.ErrSyntax
}
