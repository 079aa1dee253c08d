package models

import (
	"fmt"
	"time"
)

// Frame is an immutable, time-indexed column table. Every With* call returns a
// new Frame; column slices handed to or returned from a Frame must be treated as
// read-only by callers.
type Frame struct {
	ticker   string
	index    []time.Time
	numOrder []string
	num      map[string][]float64
	catOrder []string
	cat      map[string][]string
}

// NewFrame creates an empty frame over the given row index.
func NewFrame(ticker string, index []time.Time) *Frame {
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return &Frame{
		ticker: ticker,
		index:  idx,
		num:    map[string][]float64{},
		cat:    map[string][]string{},
	}
}

// Ticker returns the symbol the frame belongs to.
func (f *Frame) Ticker() string { return f.ticker }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Index returns the row timestamps. Read-only.
func (f *Frame) Index() []time.Time { return f.index }

// Time returns the timestamp of row i.
func (f *Frame) Time(i int) time.Time { return f.index[i] }

// Columns returns numeric column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.numOrder))
	copy(out, f.numOrder)
	return out
}

// StringColumns returns categorical column names in insertion order.
func (f *Frame) StringColumns() []string {
	out := make([]string, len(f.catOrder))
	copy(out, f.catOrder)
	return out
}

// Has reports whether a numeric or categorical column exists.
func (f *Frame) Has(name string) bool {
	if _, ok := f.num[name]; ok {
		return true
	}
	_, ok := f.cat[name]
	return ok
}

// Col returns a numeric column. Read-only.
func (f *Frame) Col(name string) ([]float64, bool) {
	v, ok := f.num[name]
	return v, ok
}

// Strings returns a categorical column. Read-only.
func (f *Frame) Strings(name string) ([]string, bool) {
	v, ok := f.cat[name]
	return v, ok
}

func (f *Frame) clone() *Frame {
	out := &Frame{
		ticker:   f.ticker,
		index:    f.index,
		numOrder: append([]string(nil), f.numOrder...),
		num:      make(map[string][]float64, len(f.num)+4),
		catOrder: append([]string(nil), f.catOrder...),
		cat:      make(map[string][]string, len(f.cat)+2),
	}
	for k, v := range f.num {
		out.num[k] = v
	}
	for k, v := range f.cat {
		out.cat[k] = v
	}
	return out
}

// With returns a new frame with the numeric column added or replaced.
func (f *Frame) With(name string, values []float64) (*Frame, error) {
	return f.WithColumns([]string{name}, [][]float64{values})
}

// WithColumns adds or replaces several numeric columns at once.
func (f *Frame) WithColumns(names []string, values [][]float64) (*Frame, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("frame: %d names for %d columns", len(names), len(values))
	}
	out := f.clone()
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("frame: empty column name")
		}
		if len(values[i]) != len(f.index) {
			return nil, fmt.Errorf("frame: column %q has %d rows, index has %d", name, len(values[i]), len(f.index))
		}
		if _, ok := out.cat[name]; ok {
			return nil, fmt.Errorf("frame: column %q already exists as categorical", name)
		}
		if _, ok := out.num[name]; !ok {
			out.numOrder = append(out.numOrder, name)
		}
		col := make([]float64, len(values[i]))
		copy(col, values[i])
		out.num[name] = col
	}
	return out, nil
}

// WithStrings returns a new frame with the categorical column added or replaced.
func (f *Frame) WithStrings(name string, values []string) (*Frame, error) {
	if len(values) != len(f.index) {
		return nil, fmt.Errorf("frame: column %q has %d rows, index has %d", name, len(values), len(f.index))
	}
	if _, ok := f.num[name]; ok {
		return nil, fmt.Errorf("frame: column %q already exists as numeric", name)
	}
	out := f.clone()
	if _, ok := out.cat[name]; !ok {
		out.catOrder = append(out.catOrder, name)
	}
	col := make([]string, len(values))
	copy(col, values)
	out.cat[name] = col
	return out, nil
}

// Take returns a new frame holding only the given rows, in the given order.
func (f *Frame) Take(rows []int) *Frame {
	idx := make([]time.Time, len(rows))
	for i, r := range rows {
		idx[i] = f.index[r]
	}
	out := &Frame{
		ticker:   f.ticker,
		index:    idx,
		numOrder: append([]string(nil), f.numOrder...),
		num:      make(map[string][]float64, len(f.num)),
		catOrder: append([]string(nil), f.catOrder...),
		cat:      make(map[string][]string, len(f.cat)),
	}
	for name, src := range f.num {
		col := make([]float64, len(rows))
		for i, r := range rows {
			col[i] = src[r]
		}
		out.num[name] = col
	}
	for name, src := range f.cat {
		col := make([]string, len(rows))
		for i, r := range rows {
			col[i] = src[r]
		}
		out.cat[name] = col
	}
	return out
}

// Row returns the values of the named numeric columns at row i.
func (f *Frame) Row(i int, cols []string) []float64 {
	out := make([]float64, len(cols))
	for j, c := range cols {
		out[j] = f.num[c][i]
	}
	return out
}
