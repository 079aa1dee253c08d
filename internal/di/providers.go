package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinLab/internal/domain/repository"
	"FinLab/internal/handler/api"
	internalrepo "FinLab/internal/repository"
	icache "FinLab/internal/service/cache"
	"FinLab/internal/services/features"
	"FinLab/internal/services/indicators"
	"FinLab/internal/services/scorer"
	"FinLab/internal/services/session"
	"FinLab/internal/usecase"
	pkgch "FinLab/pkg/clickhouse"
	"FinLab/pkg/config"
	pkgkafka "FinLab/pkg/kafka"
	applogger "FinLab/pkg/logger"
	"FinLab/pkg/metrics"
	"FinLab/pkg/postgres"
	"FinLab/pkg/server"
)

var errNoBarSource = errors.New("clickhouse is disabled: no bar source configured")

const initTimeout = 10 * time.Second

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideClickHouseClient connects to ClickHouse and creates the bar and
// result tables. It returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	stmts := append(internalrepo.BarSchema(cfg.ClickHouse.Database), internalrepo.ResultSchema(cfg.ClickHouse.Database)...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("db", cfg.ClickHouse.Database))
	return client, nil
}

// ProvidePostgresClient opens the matrix store pool. It returns nil when
// Postgres is disabled.
func ProvidePostgresClient(cfg *config.Config, l *applogger.Logger) (*postgres.Client, error) {
	if !cfg.Postgres.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := postgres.NewClient(ctx, postgres.Config{
		URL:      cfg.Postgres.URL,
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.MatrixSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, nil
}

// ProvideSetCache returns the in-process cache, layered over redis when
// redis is enabled.
func ProvideSetCache(cfg *config.Config) (*SetCache, error) {
	mem := icache.NewMemoryCache()
	if !cfg.Redis.Enabled {
		return &SetCache{SetCache: mem}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	shared, err := icache.NewRedisCache(ctx, icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	layered := icache.NewLayeredCache(mem, shared)
	return &SetCache{SetCache: layered, close: layered.Close}, nil
}

// SetCache carries the configured cache and, for redis, its closer.
type SetCache struct {
	repository.SetCache
	close func() error
}

func (c *SetCache) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

func ProvideSetLoader(cfg *config.Config) repository.IndicatorSetLoader {
	return internalrepo.NewYAMLSetLoader(cfg.Pipeline.IndicatorSetPath)
}

func ProvideRegistry(l *applogger.Logger) *indicators.Registry {
	reg := indicators.Default()
	for _, f := range reg.Failed() {
		l.Warn("indicator failed to load", applogger.String("name", f.Name), applogger.String("error", f.Err))
	}
	return reg
}

func ProvideCalendar(cfg *config.Config) (*session.Calendar, error) {
	p := cfg.Pipeline
	cal, err := session.NewCalendar(p.Timezone, p.NaiveTimestamps, p.SessionOpen, p.SessionClose)
	if err != nil {
		return nil, fmt.Errorf("session calendar: %w", err)
	}
	return cal, nil
}

func ProvideBuilder(reg *indicators.Registry, cal *session.Calendar, cfg *config.Config, l *applogger.Logger) *features.Builder {
	return features.NewBuilder(reg, cal, features.Config{
		DistanceMax:     cfg.Pipeline.DistanceMax,
		DealerThreshold: cfg.Pipeline.DealerThreshold,
	}, l.With(applogger.String("component", "builder")))
}

func ProvideResolver(b *features.Builder, loader repository.IndicatorSetLoader, c *SetCache, cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.IndicatorSetResolver {
	return usecase.NewIndicatorSetResolver(b, loader, c.SetCache, cfg.Redis.TTL, m, l)
}

// ProvideBarStore reads bars and option flow from ClickHouse, the only
// configured bar source.
func ProvideBarStore(ch *pkgch.Client, l *applogger.Logger) (*internalrepo.CHBarStore, error) {
	if ch == nil {
		return nil, errNoBarSource
	}
	return internalrepo.NewCHBarStore(ch, l), nil
}

// ProvidePipeline assembles the run pipeline. The scorer is attached when a
// scorer URL is configured; sinks when their stores are enabled.
func ProvidePipeline(
	cfg *config.Config,
	bars *internalrepo.CHBarStore,
	b *features.Builder,
	resolver *usecase.IndicatorSetResolver,
	cal *session.Calendar,
	ch *pkgch.Client,
	pg *postgres.Client,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	opts := []usecase.PipelineOption{
		usecase.WithFlowProvider(bars),
		usecase.WithMetrics(m),
	}
	if cfg.Scorer.URL != "" {
		opts = append(opts, usecase.WithScorer(scorer.NewHTTPScorer(cfg.Scorer.URL,
			scorer.WithPath(cfg.Scorer.Path),
			scorer.WithTimeout(cfg.Scorer.Timeout),
			scorer.WithAttempts(cfg.Scorer.Attempts),
		)))
	}

	var matrix repository.MatrixSink
	if pg != nil {
		matrix = internalrepo.NewPGMatrixStore(pg.Pool(), l)
	}
	var results repository.ResultSink
	if ch != nil {
		results = internalrepo.NewCHResultStore(ch, l)
	}
	opts = append(opts, usecase.WithSinks(matrix, results))

	return usecase.NewPipeline(bars, b, resolver, cal, usecase.OptionsFromConfig(cfg.Pipeline), l.With(applogger.String("component", "pipeline")), opts...)
}

// ProvideKafkaProducer creates the report producer. It returns nil when Kafka
// is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithBatching(p.BatchSize, p.BatchBytes, p.Linger),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ReportPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportTopic)
}

func ProvideBatchRunner(p *usecase.Pipeline, cfg *config.Config, pub repository.ReportPublisher, l *applogger.Logger) *usecase.BatchRunner {
	return usecase.NewBatchRunner(p, cfg.Pipeline.BatchConcurrency, pub, l.With(applogger.String("component", "batch")))
}

// ProvideKafkaConsumer creates the run-request consumer. It returns nil when
// Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l.With(applogger.String("component", "consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideRunHandler(cfg *config.Config, batch *usecase.BatchRunner, m repository.Metrics, l *applogger.Logger) *usecase.KafkaRunHandler {
	return usecase.NewKafkaRunHandler(cfg.Kafka.RequestTopic, batch, cfg.Pipeline.Lookback, m, l)
}

func ProvideHTTPHandler(l *applogger.Logger, p *usecase.Pipeline, batch *usecase.BatchRunner, reg *indicators.Registry, cfg *config.Config) *api.PipelineEchoHandler {
	return api.NewPipelineEchoHandler(l, p, batch, reg, cfg.Pipeline.Lookback)
}

// ProvideApp collects the runnable parts and every closer into the App.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.PipelineEchoHandler,
	consumer *pkgkafka.Consumer,
	rh *usecase.KafkaRunHandler,
	ch *pkgch.Client,
	pg *postgres.Client,
	c *SetCache,
	pub repository.ReportPublisher,
) *server.App {
	app := server.New(cfg, l, h)
	if consumer != nil {
		app.SetConsumer(consumer, rh)
	}
	if pub != nil {
		app.AddCloser("kafka producer", pub.Close)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch.Close)
	}
	if pg != nil {
		app.AddCloser("postgres", pg.Close)
	}
	app.AddCloser("indicator set cache", c.Close)
	return app
}

// Batch is the pipeline without intake: a batch runner plus the clients it
// holds open.
type Batch struct {
	Runner *usecase.BatchRunner
	Logger *applogger.Logger
	close  []func() error
}

// Close releases clients in reverse order of acquisition and returns the
// first error.
func (b *Batch) Close() error {
	var first error
	for i := len(b.close) - 1; i >= 0; i-- {
		if err := b.close[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func ProvideBatch(
	r *usecase.BatchRunner,
	l *applogger.Logger,
	ch *pkgch.Client,
	pg *postgres.Client,
	c *SetCache,
	pub repository.ReportPublisher,
) *Batch {
	b := &Batch{Runner: r, Logger: l}
	b.close = append(b.close, c.Close)
	if ch != nil {
		b.close = append(b.close, ch.Close)
	}
	if pg != nil {
		b.close = append(b.close, pg.Close)
	}
	if pub != nil {
		b.close = append(b.close, pub.Close)
	}
	return b
}
