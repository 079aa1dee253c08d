// Package splitter cuts a chronologically ordered matrix into walk-forward
// folds with purging and embargo.
package splitter

import (
	"errors"
	"fmt"
	"time"

	"FinLab/internal/domain/models"
)

var ErrConfig = errors.New("splitter: invalid config")

type Config struct {
	Folds   int
	Embargo int
	Purge   bool
	// TrainWindow caps the training history in rows; 0 keeps it expanding.
	TrainWindow int
	// MinTrain marks folds with fewer training rows as degenerate.
	MinTrain int
	// LabelRows is the label reach in rows, used for rows without a horizon.
	LabelRows int
}

func (c Config) validate(rows int) error {
	switch {
	case c.Folds < 1:
		return fmt.Errorf("%w: folds %d < 1", ErrConfig, c.Folds)
	case c.Embargo < 0:
		return fmt.Errorf("%w: embargo %d < 0", ErrConfig, c.Embargo)
	case c.TrainWindow < 0 || c.MinTrain < 0 || c.LabelRows < 0:
		return fmt.Errorf("%w: negative window", ErrConfig)
	case rows < c.Folds+1:
		return fmt.Errorf("%w: %d rows cannot make %d folds", ErrConfig, rows, c.Folds)
	}
	return nil
}

// Split divides times into Folds+1 contiguous blocks. Block 0 is initial
// history; blocks 1..k are the test windows, the last one absorbing any
// remainder. horizons[i], when non-zero, is the last timestamp row i's label
// depends on; it may be nil when Purge is off.
//
// For fold i the training set is every earlier row (or the last TrainWindow of
// them) minus purged rows, whose horizon reaches the test window, and minus
// embargoed rows: the Embargo rows right before the test window and the
// Embargo rows right after every earlier test window.
func Split(times, horizons []time.Time, cfg Config) ([]models.Fold, error) {
	n := len(times)
	if err := cfg.validate(n); err != nil {
		return nil, err
	}
	if cfg.Purge && horizons != nil && len(horizons) != n {
		return nil, fmt.Errorf("%w: %d horizons for %d rows", ErrConfig, len(horizons), n)
	}

	block := n / (cfg.Folds + 1)
	folds := make([]models.Fold, 0, cfg.Folds)
	for i := 1; i <= cfg.Folds; i++ {
		start, end := i*block, (i+1)*block
		if i == cfg.Folds {
			end = n
		}
		lo := 0
		if cfg.TrainWindow > 0 && start-cfg.TrainWindow > 0 {
			lo = start - cfg.TrainWindow
		}

		embargoed := make(map[int]bool)
		for j := start - cfg.Embargo; j < start; j++ {
			embargoed[j] = true
		}
		for _, prev := range folds {
			prevEnd := prev.Test[len(prev.Test)-1] + 1
			for j := prevEnd; j < prevEnd+cfg.Embargo && j < start; j++ {
				embargoed[j] = true
			}
		}

		fold := models.Fold{
			Index:     i - 1,
			Test:      span(start, end),
			TestStart: times[start],
			TestEnd:   times[end-1],
		}
		for j := lo; j < start; j++ {
			if embargoed[j] {
				fold.Embargoed++
				continue
			}
			if cfg.Purge && leaks(j, start, times, horizons, cfg.LabelRows) {
				fold.Purged++
				continue
			}
			fold.Train = append(fold.Train, j)
		}
		fold.TrainSize, fold.TestSize = len(fold.Train), len(fold.Test)
		switch {
		case fold.TrainSize == 0:
			fold.Degenerate, fold.Reason = true, "empty training set after purge/embargo"
		case fold.TrainSize < cfg.MinTrain:
			fold.Degenerate, fold.Reason = true, fmt.Sprintf("training set %d below minimum %d", fold.TrainSize, cfg.MinTrain)
		}
		folds = append(folds, fold)
	}
	return folds, nil
}

func leaks(row, testStart int, times, horizons []time.Time, labelRows int) bool {
	if horizons != nil && !horizons[row].IsZero() {
		return !horizons[row].Before(times[testStart])
	}
	return row+labelRows >= testStart
}

func span(from, to int) []int {
	out := make([]int, to-from)
	for i := range out {
		out[i] = from + i
	}
	return out
}
