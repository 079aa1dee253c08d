// Package indicators holds the indicator registry and the built-in indicator
// families. Every indicator is a pure function of a bar frame: outputs have the
// frame's length, warm-up rows are NaN, and missing source columns produce the
// family's fallback instead of an error.
package indicators

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"FinLab/internal/domain/models"
)

type Category string

const (
	Trend      Category = "trend"
	Momentum   Category = "momentum"
	Oscillator Category = "oscillator"
	Volatility Category = "volatility"
	Volume     Category = "volume"
	Flow       Category = "flow"
)

// Fallback is the value an indicator of this category emits when its source
// columns are missing: NaN for bounded oscillators and momentum, 0 otherwise.
func (c Category) Fallback() float64 {
	switch c {
	case Oscillator, Momentum:
		return math.NaN()
	default:
		return 0
	}
}

func (c Category) valid() bool {
	switch c {
	case Trend, Momentum, Oscillator, Volatility, Volume, Flow:
		return true
	}
	return false
}

// Indicator is one configured computation.
type Indicator interface {
	// Outputs are the column names, derived from name and params.
	Outputs() []string
	// Inputs are the frame columns the computation reads.
	Inputs() []string
	// Lookback is the number of leading rows that stay NaN on finite input.
	Lookback() int
	// Calculate returns one slice per output, each of f.Len() rows.
	Calculate(f *models.Frame) [][]float64
}

// Spec describes an indicator for registration and discovery.
type Spec struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Defaults    Params   `json:"defaults"`
	New         func(Params) (Indicator, error) `json:"-"`
}

// LoadError records a spec the registry refused.
type LoadError struct {
	Name string `json:"name"`
	Err  string `json:"error"`
}

// Registry maps indicator names to specs. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]Spec
	failed []LoadError
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Default returns a registry loaded with every built-in indicator.
func Default() *Registry {
	r := NewRegistry()
	r.Load(Builtins()...)
	return r
}

// Register validates and adds one spec. A rejected spec is also recorded in
// Failed so a bulk Load never stops at the first bad entry.
func (r *Registry) Register(s Spec) error {
	err := r.check(s)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		if _, dup := r.specs[s.Name]; dup {
			err = fmt.Errorf("duplicate indicator %q", s.Name)
		}
	}
	if err != nil {
		r.failed = append(r.failed, LoadError{Name: s.Name, Err: err.Error()})
		return err
	}
	r.specs[s.Name] = s
	return nil
}

func (r *Registry) check(s Spec) (err error) {
	if s.Name == "" {
		return errors.New("empty indicator name")
	}
	if !s.Category.valid() {
		return fmt.Errorf("indicator %q: unknown category %q", s.Name, s.Category)
	}
	if s.New == nil {
		return fmt.Errorf("indicator %q: nil constructor", s.Name)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("indicator %q: constructor panic: %v", s.Name, rec)
		}
	}()
	ind, err := s.New(s.Defaults.clone())
	if err != nil {
		return fmt.Errorf("indicator %q: defaults rejected: %w", s.Name, err)
	}
	if len(ind.Outputs()) == 0 {
		return fmt.Errorf("indicator %q: no outputs", s.Name)
	}
	return nil
}

// Load registers every spec and returns how many were accepted.
func (r *Registry) Load(specs ...Spec) int {
	n := 0
	for _, s := range specs {
		if r.Register(s) == nil {
			n++
		}
	}
	return n
}

// Failed lists specs that could not be loaded.
func (r *Registry) Failed() []LoadError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LoadError, len(r.failed))
	copy(out, r.failed)
	return out
}

func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// List returns all specs sorted by category, then name.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sortSpecs(out)
	return out
}

// ByCategory returns the specs of one category sorted by name.
func (r *Registry) ByCategory(c Category) []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Spec
	for _, s := range r.specs {
		if s.Category == c {
			out = append(out, s)
		}
	}
	sortSpecs(out)
	return out
}

func sortSpecs(s []Spec) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Category != s[j].Category {
			return s[i].Category < s[j].Category
		}
		return s[i].Name < s[j].Name
	})
}

// New builds a configured indicator. Unknown names, unknown params and badly
// typed params are configuration errors.
func (r *Registry) New(name string, overrides map[string]any) (*Bound, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", ErrConfig, ErrUnknownIndicator, name)
	}
	p, err := mergeParams(s.Defaults, overrides)
	if err != nil {
		return nil, fmt.Errorf("indicator %q: %w", name, err)
	}
	ind, err := s.New(p)
	if err != nil {
		if !errors.Is(err, ErrConfig) {
			err = fmt.Errorf("%w: %w", ErrConfig, err)
		}
		return nil, fmt.Errorf("indicator %q: %w", name, err)
	}
	return &Bound{spec: s, params: p, ind: ind}, nil
}

// Bound is a configured indicator plus the registry's missing-input policy.
type Bound struct {
	spec   Spec
	params Params
	ind    Indicator
}

func (b *Bound) Name() string       { return b.spec.Name }
func (b *Bound) Category() Category { return b.spec.Category }
func (b *Bound) Params() Params     { return b.params.clone() }
func (b *Bound) Outputs() []string  { return b.ind.Outputs() }
func (b *Bound) Inputs() []string   { return b.ind.Inputs() }
func (b *Bound) Lookback() int      { return b.ind.Lookback() }

// Missing returns the input columns absent from f.
func (b *Bound) Missing(f *models.Frame) []string {
	var out []string
	for _, c := range b.ind.Inputs() {
		if _, ok := f.Col(c); !ok {
			out = append(out, c)
		}
	}
	return out
}

// Calculate runs the indicator, or fills every output with the category
// fallback when inputs are missing. It never fails.
func (b *Bound) Calculate(f *models.Frame) [][]float64 {
	if len(b.Missing(f)) > 0 {
		fb := b.spec.Category.Fallback()
		out := make([][]float64, len(b.ind.Outputs()))
		for i := range out {
			out[i] = filled(f.Len(), fb)
		}
		return out
	}
	return b.ind.Calculate(f)
}
