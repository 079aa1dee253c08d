package indicators

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrConfig marks parameter and descriptor problems. Callers treat it as fatal
	// before any computation starts.
	ErrConfig = errors.New("indicator config")
	// ErrUnknownIndicator is returned for names missing from the registry.
	ErrUnknownIndicator = errors.New("unknown indicator")
)

// Params is a set of named indicator parameters. Values are int, float64,
// string or bool after normalization.
type Params map[string]any

func (p Params) Int(key string) int {
	v, _ := p[key].(int)
	return v
}

func (p Params) Float(key string) float64 {
	v, _ := p[key].(float64)
	return v
}

func (p Params) String(key string) string {
	v, _ := p[key].(string)
	return v
}

func (p Params) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

func (p Params) clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Key renders the params deterministically, e.g. "fast=12,signal=9,slow=26".
func (p Params) Key() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatValue(p[k])
	}
	return strings.Join(parts, ",")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// mergeParams overlays overrides on defaults. Unknown keys and values that
// cannot be coerced to the default's type are configuration errors.
func mergeParams(defaults Params, overrides map[string]any) (Params, error) {
	out := defaults.clone()
	for k, v := range overrides {
		def, ok := defaults[k]
		if !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrConfig, k)
		}
		cv, err := coerce(def, v)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", ErrConfig, k, err)
		}
		out[k] = cv
	}
	return out, nil
}

func coerce(def, v any) (any, error) {
	switch def.(type) {
	case int:
		switch x := v.(type) {
		case int:
			return x, nil
		case int32:
			return int(x), nil
		case int64:
			return int(x), nil
		case uint64:
			return int(x), nil
		case float64:
			if x != math.Trunc(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("want integer, got %v", x)
			}
			return int(x), nil
		}
	case float64:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
	case string:
		if x, ok := v.(string); ok {
			return x, nil
		}
	case bool:
		if x, ok := v.(bool); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("want %T, got %T", def, v)
}

func positive(p Params, keys ...string) error {
	for _, k := range keys {
		switch v := p[k].(type) {
		case int:
			if v < 1 {
				return fmt.Errorf("%w: %s must be >= 1, got %d", ErrConfig, k, v)
			}
		case float64:
			if !(v > 0) {
				return fmt.Errorf("%w: %s must be > 0, got %v", ErrConfig, k, v)
			}
		}
	}
	return nil
}
