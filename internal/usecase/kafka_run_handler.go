package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	xhttp "FinLab/pkg/http"
	pkgkafka "FinLab/pkg/kafka"
	applogger "FinLab/pkg/logger"
)

// KafkaRunHandler executes batch run requests consumed from a topic. Reports
// go out through the batch runner's publisher.
type KafkaRunHandler struct {
	topic    string
	batch    *BatchRunner
	lookback time.Duration
	metrics  domrepo.Metrics
	l        *applogger.Logger
	now      func() time.Time
}

func NewKafkaRunHandler(topic string, batch *BatchRunner, lookback time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *KafkaRunHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaRunHandler{topic: topic, batch: batch, lookback: lookback, metrics: metrics, l: l, now: time.Now}
}

func (h *KafkaRunHandler) Topic() string { return h.topic }

// Handle fails only on malformed requests, so they end up on the DLQ. Ticker
// failures are reported, not retried.
func (h *KafkaRunHandler) Handle(ctx context.Context, b []byte) error {
	var req models.BatchRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.recordError("consumer_unmarshal")
		return fmt.Errorf("decode run request: %w", err)
	}
	if err := xhttp.DefaultAndValidate(ctx, &req); err != nil {
		h.recordError("consumer_validate")
		return fmt.Errorf("validate run request: %w", err)
	}
	params, err := ParamsFromBatch(req, h.lookback, h.now())
	if err != nil {
		h.recordError("consumer_params")
		return err
	}
	items := h.batch.Run(ctx, params, req.Tickers)
	h.l.Info("kafka run request handled",
		applogger.Int("tickers", len(items)),
		applogger.String("model_id", req.ModelID))
	return nil
}

func (h *KafkaRunHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaRunHandler)(nil)
