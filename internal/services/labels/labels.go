// Package labels attaches forward-looking targets to a frame. Every label is
// computed per session (see package session) so all bars of one day share it.
package labels

import (
	"errors"
	"fmt"
	"math"
	"time"

	"FinLab/internal/domain/models"
	"FinLab/internal/services/session"
)

const (
	Up   = "UP"
	Down = "DOWN"
	Flat = "FLAT"
)

const (
	ColCloseToOpen      = "ret_close_to_open"
	ColCloseToOpenLabel = "label_close_to_open"
)

var ErrHorizon = errors.New("labels: horizon must be at least one session")

// ForwardColumns returns the return and class column names for an N-day label.
func ForwardColumns(days int) (ret, label string) {
	return fmt.Sprintf("fwd_ret_%dd", days), fmt.Sprintf("label_fwd_%dd", days)
}

// Result is a labeled frame plus, per row, the timestamp of the last bar the
// label depends on. Unlabeled rows carry the zero time.
type Result struct {
	Frame   *models.Frame
	Horizon []time.Time
	// Return and Label name the columns just added.
	Return string
	Label  string
}

// Classify bands a return: UP above b, DOWN below -b, FLAT otherwise. NaN
// yields the empty class.
func Classify(ret, band float64) string {
	switch {
	case math.IsNaN(ret):
		return ""
	case ret > band:
		return Up
	case ret < -band:
		return Down
	default:
		return Flat
	}
}

// ForwardReturnDays labels every row of session d with the simple return from
// session d's close to session d+days' close. The last days sessions are NaN.
// When classify is false the class column is still added, all empty.
func ForwardReturnDays(f *models.Frame, cal *session.Calendar, days int, classify bool, band float64) (Result, error) {
	if days < 1 {
		return Result{}, ErrHorizon
	}
	retName, labName := ForwardColumns(days)
	n := f.Len()
	ret := nanCol(n)
	horizon := make([]time.Time, n)

	if closes, ok := f.Col(models.ColClose); ok && n > 0 {
		sessions := cal.Sessions(f.Index())
		for d := 0; d+days < len(sessions); d++ {
			cur, next := sessions[d], sessions[d+days]
			r := pctChange(closes[cur.Last], closes[next.Last])
			for _, row := range cur.Rows {
				ret[row] = r
				horizon[row] = f.Time(next.Last)
			}
		}
	}
	return attach(f, retName, labName, ret, horizon, classify, band)
}

// CloseToOpenDirection labels every row of session d with the return from
// session d's close to the open of the next session's first bar (its close
// when the frame carries no open). The last session is NaN.
func CloseToOpenDirection(f *models.Frame, cal *session.Calendar, band float64) (Result, error) {
	n := f.Len()
	ret := nanCol(n)
	horizon := make([]time.Time, n)

	closes, ok := f.Col(models.ColClose)
	if ok && n > 0 {
		opens, hasOpen := f.Col(models.ColOpen)
		if !hasOpen {
			opens = closes
		}
		sessions := cal.Sessions(f.Index())
		for d := 0; d+1 < len(sessions); d++ {
			cur, next := sessions[d], sessions[d+1]
			r := pctChange(closes[cur.Last], opens[next.First])
			for _, row := range cur.Rows {
				ret[row] = r
				horizon[row] = f.Time(next.First)
			}
		}
	}
	return attach(f, ColCloseToOpen, ColCloseToOpenLabel, ret, horizon, true, band)
}

func attach(f *models.Frame, retName, labName string, ret []float64, horizon []time.Time, classify bool, band float64) (Result, error) {
	classes := make([]string, len(ret))
	if classify {
		for i, r := range ret {
			classes[i] = Classify(r, band)
		}
	}
	out, err := f.With(retName, ret)
	if err != nil {
		return Result{}, fmt.Errorf("labels: %w", err)
	}
	if out, err = out.WithStrings(labName, classes); err != nil {
		return Result{}, fmt.Errorf("labels: %w", err)
	}
	return Result{Frame: out, Horizon: horizon, Return: retName, Label: labName}, nil
}

func pctChange(from, to float64) float64 {
	if from == 0 || math.IsNaN(from) || math.IsNaN(to) {
		return math.NaN()
	}
	return (to - from) / from
}

func nanCol(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
