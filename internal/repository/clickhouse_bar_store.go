package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	pkgch "FinLab/pkg/clickhouse"
	applogger "FinLab/pkg/logger"
)

// BarSchema creates the raw bar and option-flow tables read by CHBarStore.
func BarSchema(db string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars_1h (
			ts DateTime64(3, 'UTC'),
			ticker LowCardinality(String),
			open Float64, high Float64, low Float64, close Float64, volume Float64,
			calls_bought Nullable(Float64), calls_sold Nullable(Float64),
			puts_bought Nullable(Float64), puts_sold Nullable(Float64)
		) ENGINE = ReplacingMergeTree ORDER BY (ticker, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars_1d AS %s.bars_1h`, db, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.option_flow_1h (
			ts DateTime64(3, 'UTC'),
			ticker LowCardinality(String),
			distance Int16,
			calls_bought Float64, calls_sold Float64, puts_bought Float64, puts_sold Float64
		) ENGINE = ReplacingMergeTree ORDER BY (ticker, ts, distance)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.option_flow_1d AS %s.option_flow_1h`, db, db),
	}
}

// CHBarStore reads bars and per-distance option flow from ClickHouse.
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var (
	_ domrepo.BarProvider  = (*CHBarStore)(nil)
	_ domrepo.FlowProvider = (*CHBarStore)(nil)
)

func NewCHBarStore(ch *pkgch.Client, l *applogger.Logger) *CHBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarStore{db: ch.DB(), database: ch.Database(), l: l}
}

func (s *CHBarStore) GetBars(ctx context.Context, ticker string, from, to time.Time, cadence domrepo.Cadence) ([]models.Bar, error) {
	start := time.Now()
	table := s.database + "." + tableFor("bars", cadence)
	q := fmt.Sprintf(`
		SELECT ts, open, high, low, close, volume, calls_bought, calls_sold, puts_bought, puts_sold
		FROM %s
		WHERE ticker = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC`, table)
	rows, err := s.db.QueryContext(ctx, q, ticker, from, to)
	if err != nil {
		s.l.Error("clickhouse get_bars query error",
			applogger.String("table", table), applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		var cb, cs, pb, ps sql.NullFloat64
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &cb, &cs, &pb, &ps); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Extra = flowExtras(cb, cs, pb, ps)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.String("table", table),
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHBarStore) GetFlow(ctx context.Context, ticker string, from, to time.Time, cadence domrepo.Cadence) ([]models.FlowRecord, error) {
	table := s.database + "." + tableFor("option_flow", cadence)
	q := fmt.Sprintf(`
		SELECT ts, distance, calls_bought, calls_sold, puts_bought, puts_sold
		FROM %s
		WHERE ticker = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC, distance ASC`, table)
	rows, err := s.db.QueryContext(ctx, q, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}
	defer rows.Close()

	var out []models.FlowRecord
	for rows.Next() {
		var r models.FlowRecord
		var d int16
		if err := rows.Scan(&r.Timestamp, &d, &r.CallsBought, &r.CallsSold, &r.PutsBought, &r.PutsSold); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		r.Distance = int(d)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// tableFor maps a cadence to its table suffix. Unannualized runs read hourly
// bars.
func tableFor(base string, c domrepo.Cadence) string {
	if c == domrepo.CadenceDaily {
		return base + "_1d"
	}
	return base + "_1h"
}

func flowExtras(cb, cs, pb, ps sql.NullFloat64) map[string]float64 {
	if !cb.Valid && !cs.Valid && !pb.Valid && !ps.Valid {
		return nil
	}
	out := make(map[string]float64, 4)
	for name, v := range map[string]sql.NullFloat64{
		models.ColCallsBought: cb,
		models.ColCallsSold:   cs,
		models.ColPutsBought:  pb,
		models.ColPutsSold:    ps,
	} {
		if v.Valid {
			out[name] = v.Float64
		}
	}
	return out
}
