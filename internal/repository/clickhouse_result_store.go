package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	pkgch "FinLab/pkg/clickhouse"
	applogger "FinLab/pkg/logger"
)

// ResultSchema creates the run, fold and threshold result tables.
func ResultSchema(db string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.runs (
			run_id String, ticker LowCardinality(String), model_id String,
			set_key String, label String, rows UInt32, features Array(String),
			resorted UInt8, duplicates UInt32,
			best_threshold Nullable(Float64), best_sharpe Nullable(Float64),
			robust_threshold Nullable(Float64), robust_sharpe Nullable(Float64),
			started_at DateTime64(3, 'UTC'), duration_ms UInt64
		) ENGINE = MergeTree ORDER BY (ticker, started_at)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.folds (
			run_id String, fold UInt16, train_size UInt32, test_size UInt32,
			test_start DateTime64(3, 'UTC'), test_end DateTime64(3, 'UTC'),
			purged UInt32, embargoed UInt32, degenerate UInt8, reason String
		) ENGINE = MergeTree ORDER BY (run_id, fold)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.threshold_results (
			run_id String, fold UInt16, threshold Float64, trades UInt32,
			mean_return Float64, std_return Float64, sharpe Float64,
			cumulative Float64, hit_rate Float64, degenerate UInt8, flags Array(String)
		) ENGINE = MergeTree ORDER BY (run_id, fold, threshold)`, db),
	}
}

// CHResultStore writes run results to ClickHouse with multi-row inserts.
type CHResultStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var _ domrepo.ResultSink = (*CHResultStore)(nil)

func NewCHResultStore(ch *pkgch.Client, l *applogger.Logger) *CHResultStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHResultStore{db: ch.DB(), database: ch.Database(), l: l}
}

const resultChunk = 2000

func (s *CHResultStore) SaveResult(ctx context.Context, res *models.RunResult) error {
	if err := s.insertRun(ctx, res); err != nil {
		return err
	}

	folds := make([][]any, 0, len(res.Folds))
	for _, f := range res.Folds {
		folds = append(folds, []any{
			res.RunID, uint16(f.Index), uint32(f.TrainSize), uint32(f.TestSize),
			f.TestStart, f.TestEnd, uint32(f.Purged), uint32(f.Embargoed), b2u(f.Degenerate), f.Reason,
		})
	}
	if err := s.insertRows(ctx, "folds",
		"run_id, fold, train_size, test_size, test_start, test_end, purged, embargoed, degenerate, reason", folds); err != nil {
		return err
	}

	var results [][]any
	if res.Evaluation != nil {
		for _, fe := range res.Evaluation.Folds {
			for _, r := range fe.Results {
				results = append(results, []any{
					res.RunID, uint16(r.Fold), r.Threshold, uint32(r.Trades), r.MeanReturn, r.StdReturn,
					r.Sharpe, r.Cumulative, r.HitRate, b2u(r.Degenerate), append([]string{}, r.Flags...),
				})
			}
		}
	}
	if err := s.insertRows(ctx, "threshold_results",
		"run_id, fold, threshold, trades, mean_return, std_return, sharpe, cumulative, hit_rate, degenerate, flags", results); err != nil {
		return err
	}
	s.l.Debug("clickhouse result saved",
		applogger.String("run_id", res.RunID),
		applogger.Int("folds", len(folds)),
		applogger.Int("threshold_rows", len(results)))
	return nil
}

func (s *CHResultStore) insertRun(ctx context.Context, res *models.RunResult) error {
	var bestTh, bestSh, robTh, robSh *float64
	if ev := res.Evaluation; ev != nil {
		if ev.Best != nil {
			bestTh, bestSh = &ev.Best.Threshold, &ev.Best.Sharpe
		}
		if ev.BestRobust != nil {
			robTh, robSh = &ev.BestRobust.Threshold, &ev.BestRobust.Sharpe
		}
	}
	q := fmt.Sprintf(`INSERT INTO %s.runs (run_id, ticker, model_id, set_key, label, rows, features, resorted, duplicates,
		best_threshold, best_sharpe, robust_threshold, robust_sharpe, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		res.RunID, res.Ticker, res.ModelID, res.SetKey, res.Label, uint32(res.Rows), res.Features,
		b2u(res.Integrity.Resorted), uint32(len(res.Integrity.Duplicates)),
		bestTh, bestSh, robTh, robSh, res.StartedAt, uint64(res.Duration.Milliseconds()))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *CHResultStore) insertRows(ctx context.Context, table, columns string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	for start := 0; start < len(rows); start += resultChunk {
		end := min(start+resultChunk, len(rows))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*width)
		for _, r := range rows[start:end] {
			values = append(values, placeholder)
			args = append(args, r...)
		}
		q := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s", s.database, table, columns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
