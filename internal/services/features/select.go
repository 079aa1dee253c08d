package features

import (
	"fmt"
	"math"
	"path"
	"strings"

	"FinLab/internal/domain/models"
)

// Raw prices, forward-looking label columns and precomputed scores never
// become model features.
var reservedPrefixes = []string{"fwd_ret_", "label_"}

var reservedNames = map[string]bool{
	models.ColOpen:      true,
	models.ColHigh:      true,
	models.ColLow:       true,
	models.ColClose:     true,
	models.ColVolume:    true,
	"ret_close_to_open": true,
	"score":             true,
}

// SelectPolicy picks feature columns out of a built frame. Empty Prefixes and
// Patterns select every non-reserved numeric column.
type SelectPolicy struct {
	Prefixes []string
	// Patterns are path.Match globs, e.g. "rsi_*".
	Patterns []string
	Exclude  []string
}

// IsReserved reports whether a column must never be used as a feature.
func IsReserved(col string) bool {
	if reservedNames[col] {
		return true
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(col, p) {
			return true
		}
	}
	return false
}

// SelectFeatures returns the matching columns in frame order.
func SelectFeatures(f *models.Frame, p SelectPolicy) ([]string, error) {
	for _, pat := range p.Patterns {
		if _, err := path.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("feature pattern %q: %w", pat, err)
		}
	}
	excluded := make(map[string]bool, len(p.Exclude))
	for _, e := range p.Exclude {
		excluded[e] = true
	}
	var out []string
	for _, c := range f.Columns() {
		if IsReserved(c) || excluded[c] {
			continue
		}
		if p.matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p SelectPolicy) matches(col string) bool {
	if len(p.Prefixes) == 0 && len(p.Patterns) == 0 {
		return true
	}
	for _, pre := range p.Prefixes {
		if strings.HasPrefix(col, pre) {
			return true
		}
	}
	for _, pat := range p.Patterns {
		if ok, _ := path.Match(pat, col); ok {
			return true
		}
	}
	return false
}

// Matrix extracts rows of the given columns, row-major.
func Matrix(f *models.Frame, cols []string, rows []int) ([][]float64, error) {
	for _, c := range cols {
		if _, ok := f.Col(c); !ok {
			return nil, fmt.Errorf("feature column %q not in frame", c)
		}
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = f.Row(r, cols)
	}
	return out, nil
}

// CompleteRows returns the rows of f whose feature values are all finite.
func CompleteRows(f *models.Frame, cols []string) []int {
	out := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		ok := true
		for _, c := range cols {
			v, _ := f.Col(c)
			if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}
