package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrUnparseableTimestamp marks bars whose timestamp is the zero value.
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
	// ErrDuplicateTimestamp is returned when duplicates are configured as fatal.
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")
)

// IntegrityReport describes what FrameFromBars had to do to the input.
type IntegrityReport struct {
	Rows       int         `json:"rows"`
	Resorted   bool        `json:"resorted"`
	Duplicates []time.Time `json:"duplicates,omitempty"`
}

func (r IntegrityReport) Clean() bool { return !r.Resorted && len(r.Duplicates) == 0 }

// FrameFromBars builds a bar table ordered by timestamp. Out-of-order input is
// stably sorted and reported; duplicated timestamps are kept and reported.
// A zero timestamp is an error.
func FrameFromBars(ticker string, bars []Bar) (*Frame, IntegrityReport, error) {
	rep := IntegrityReport{Rows: len(bars)}
	for i, b := range bars {
		if b.Timestamp.IsZero() {
			return nil, rep, fmt.Errorf("%s row %d: %w", ticker, i, ErrUnparseableTimestamp)
		}
	}

	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	if !sort.SliceIsSorted(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) }) {
		rep.Resorted = true
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Timestamp.Equal(sorted[i-1].Timestamp) {
			rep.Duplicates = append(rep.Duplicates, sorted[i].Timestamp)
		}
	}

	index := make([]time.Time, len(sorted))
	cols := make([][]float64, len(OHLCV))
	for j := range cols {
		cols[j] = make([]float64, len(sorted))
	}
	extraSet := map[string]struct{}{}
	for i, b := range sorted {
		index[i] = b.Timestamp
		cols[0][i] = b.Open
		cols[1][i] = b.High
		cols[2][i] = b.Low
		cols[3][i] = b.Close
		cols[4][i] = b.Volume
		for k := range b.Extra {
			if !isOHLCV(k) {
				extraSet[k] = struct{}{}
			}
		}
	}

	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	names := append([]string(nil), OHLCV...)
	for _, k := range extras {
		col := make([]float64, len(sorted))
		for i, b := range sorted {
			v, ok := b.Extra[k]
			if !ok {
				v = math.NaN()
			}
			col[i] = v
		}
		names = append(names, k)
		cols = append(cols, col)
	}

	f, err := NewFrame(ticker, index).WithColumns(names, cols)
	if err != nil {
		return nil, rep, err
	}
	return f, rep, nil
}

func isOHLCV(name string) bool {
	for _, c := range OHLCV {
		if c == name {
			return true
		}
	}
	return false
}
