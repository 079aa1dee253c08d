package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	applogger "FinLab/pkg/logger"
)

// MatrixSchema creates the feature matrix table.
var MatrixSchema = []string{
	`CREATE TABLE IF NOT EXISTS feature_matrix (
		run_id    TEXT NOT NULL,
		ticker    TEXT NOT NULL,
		ts        TIMESTAMPTZ NOT NULL,
		features  JSONB NOT NULL,
		labels    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, ts)
	)`,
	`CREATE INDEX IF NOT EXISTS feature_matrix_ticker_ts ON feature_matrix (ticker, ts)`,
}

// PGMatrixStore upserts one JSONB row per bar: the selected features plus
// every label column of the frame.
type PGMatrixStore struct {
	pool *pgxpool.Pool
	l    *applogger.Logger
}

var _ domrepo.MatrixSink = (*PGMatrixStore)(nil)

func NewPGMatrixStore(pool *pgxpool.Pool, l *applogger.Logger) *PGMatrixStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &PGMatrixStore{pool: pool, l: l}
}

const matrixBatch = 5000

func (s *PGMatrixStore) SaveMatrix(ctx context.Context, runID string, f *models.Frame, features []string) error {
	rows, err := matrixRows(f, features)
	if err != nil {
		return err
	}
	for i := 0; i < len(rows); i += matrixBatch {
		chunk := rows[i:min(i+matrixBatch, len(rows))]
		batch := &pgx.Batch{}
		for _, r := range chunk {
			batch.Queue(`INSERT INTO feature_matrix (run_id, ticker, ts, features, labels)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (run_id, ts) DO UPDATE SET
				  features = EXCLUDED.features,
				  labels = EXCLUDED.labels`,
				runID, f.Ticker(), f.Time(r.row), r.features, r.labels)
		}
		br := s.pool.SendBatch(ctx, batch)
		for range chunk {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("upsert matrix row: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
		s.l.Debug("matrix batch upserted", applogger.String("run_id", runID), applogger.Int("rows", len(chunk)), applogger.Int("offset", i))
	}
	return nil
}

type matrixRow struct {
	row      int
	features []byte
	labels   []byte
}

// matrixRows encodes each frame row. Non-finite feature values are left out of
// the JSON object; label columns are those with a label_ or fwd_ret_ prefix or
// the close-to-open return.
func matrixRows(f *models.Frame, features []string) ([]matrixRow, error) {
	var numLabels, catLabels []string
	for _, c := range f.Columns() {
		if isLabelColumn(c) {
			numLabels = append(numLabels, c)
		}
	}
	for _, c := range f.StringColumns() {
		if isLabelColumn(c) {
			catLabels = append(catLabels, c)
		}
	}

	out := make([]matrixRow, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		feats := make(map[string]float64, len(features))
		for _, c := range features {
			col, ok := f.Col(c)
			if !ok {
				return nil, fmt.Errorf("matrix: unknown feature %q", c)
			}
			if v := col[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				feats[c] = v
			}
		}
		labels := make(map[string]any, len(numLabels)+len(catLabels))
		for _, c := range numLabels {
			col, _ := f.Col(c)
			if v := col[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				labels[c] = v
			}
		}
		for _, c := range catLabels {
			col, _ := f.Strings(c)
			if col[i] != "" {
				labels[c] = col[i]
			}
		}
		fj, err := json.Marshal(feats)
		if err != nil {
			return nil, fmt.Errorf("marshal features: %w", err)
		}
		lj, err := json.Marshal(labels)
		if err != nil {
			return nil, fmt.Errorf("marshal labels: %w", err)
		}
		out = append(out, matrixRow{row: i, features: fj, labels: lj})
	}
	return out, nil
}

func isLabelColumn(c string) bool {
	return strings.HasPrefix(c, "label_") || strings.HasPrefix(c, "fwd_ret_") || c == "ret_close_to_open"
}
