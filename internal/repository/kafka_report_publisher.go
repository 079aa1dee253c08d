package repository

import (
	"context"
	"fmt"
	"time"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	pkgkafka "FinLab/pkg/kafka"
)

// RunReport is the compact summary published per ticker. Per-threshold
// results stay in the result store.
type RunReport struct {
	RunID      string                    `json:"run_id,omitempty"`
	Ticker     string                    `json:"ticker"`
	ModelID    string                    `json:"model_id,omitempty"`
	Status     string                    `json:"status"`
	Stage      string                    `json:"stage,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Rows       int                       `json:"rows,omitempty"`
	Features   int                       `json:"features,omitempty"`
	Folds      int                       `json:"folds,omitempty"`
	Degenerate int                       `json:"degenerate_folds,omitempty"`
	Best       *models.ThresholdResult   `json:"best,omitempty"`
	BestRobust *models.ThresholdResult   `json:"best_robust,omitempty"`
	Summary    []models.ThresholdSummary `json:"summary,omitempty"`
	At         time.Time                 `json:"at"`
}

// Publisher is the part of pkg/kafka.Producer the report publisher needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}

var _ Publisher = (*pkgkafka.Producer)(nil)

// KafkaReportPublisher keys reports by ticker.
type KafkaReportPublisher struct {
	producer Publisher
	topic    string
	now      func() time.Time
}

var _ domrepo.ReportPublisher = (*KafkaReportPublisher)(nil)

func NewKafkaReportPublisher(producer Publisher, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaReportPublisher) PublishRun(ctx context.Context, res *models.RunResult) error {
	r := RunReport{
		RunID:    res.RunID,
		Ticker:   res.Ticker,
		ModelID:  res.ModelID,
		Status:   "ok",
		Rows:     res.Rows,
		Features: len(res.Features),
		Folds:    len(res.Folds),
		At:       p.now().UTC(),
	}
	for _, f := range res.Folds {
		if f.Degenerate {
			r.Degenerate++
		}
	}
	if ev := res.Evaluation; ev != nil {
		r.Best, r.BestRobust, r.Summary = ev.Best, ev.BestRobust, ev.Summary
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(res.Ticker), r); err != nil {
		return fmt.Errorf("publish run report: %w", err)
	}
	return nil
}

func (p *KafkaReportPublisher) PublishFailure(ctx context.Context, item models.BatchItem) error {
	r := RunReport{
		Ticker: item.Ticker,
		Status: "failed",
		Stage:  item.Stage,
		Error:  item.Error,
		At:     p.now().UTC(),
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(item.Ticker), r); err != nil {
		return fmt.Errorf("publish failure report: %w", err)
	}
	return nil
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
