package repository

// Cadence is the bar resolution a provider is asked for. It also selects the
// Sharpe annualization of the evaluator.
type Cadence string

const (
	CadenceHourly Cadence = "hourly"
	CadenceDaily  Cadence = "daily"
	CadenceNone   Cadence = "none"
)

// IsValidCadence returns true if c is a supported cadence.
func IsValidCadence(c Cadence) bool {
	switch c {
	case CadenceHourly, CadenceDaily, CadenceNone:
		return true
	default:
		return false
	}
}

// DefaultCadence returns the default cadence.
func DefaultCadence() Cadence { return CadenceHourly }

// NormalizeCadence converts raw string to a valid cadence (or default).
func NormalizeCadence(s string) Cadence {
	c := Cadence(s)
	if IsValidCadence(c) {
		return c
	}
	return DefaultCadence()
}
