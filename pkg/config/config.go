package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applogger "FinLab/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Log         applogger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		RateLimit       float64       `yaml:"rate_limit" default:"2"`
		RateBurst       int           `yaml:"rate_burst" default:"5"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Pipeline   Pipeline `yaml:"pipeline"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" validate:"required_if=Enabled true"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finlab"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		URL      string `yaml:"url" validate:"required_if=Enabled true"`
		MaxConns int32  `yaml:"max_conns" default:"10"`
		MinConns int32  `yaml:"min_conns" default:"2"`
	} `yaml:"postgres"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
		RequestTopic string   `yaml:"request_topic" default:"finlab.run.requests"`
		ReportTopic  string   `yaml:"report_topic" default:"finlab.run.reports"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finlab"`
			Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" validate:"required_if=Enabled true"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl" default:"24h"`
	} `yaml:"redis"`
	Scorer struct {
		URL      string        `yaml:"url"`
		Path     string        `yaml:"path" default:"/score"`
		Timeout  time.Duration `yaml:"timeout" default:"30s"`
		Attempts int           `yaml:"attempts" default:"2"`
	} `yaml:"scorer"`
}

// Pipeline holds the knobs of the feature/label/split/evaluate run.
type Pipeline struct {
	Timezone         string        `yaml:"timezone" default:"America/New_York" validate:"required"`
	NaiveTimestamps  bool          `yaml:"naive_timestamps"`
	SessionOpen      string        `yaml:"session_open"`  // "09:30", empty = whole day
	SessionClose     string        `yaml:"session_close"` // "16:00"
	RejectDuplicates bool          `yaml:"reject_duplicates"`
	IndicatorSetPath string        `yaml:"indicator_set_path" default:"config/indicators.yaml"`
	DistanceMax      int           `yaml:"distance_max" default:"5" validate:"gte=0,lte=50"`
	DealerThreshold  float64       `yaml:"dealer_threshold" default:"0"`
	FeaturePrefixes  []string      `yaml:"feature_prefixes"`
	Label            string        `yaml:"label" default:"forward" validate:"oneof=forward close_to_open"`
	ForwardDays      int           `yaml:"forward_days" default:"1" validate:"gte=1"`
	Band             float64       `yaml:"band" default:"0.002" validate:"gte=0"`
	CloseOpenBand    float64       `yaml:"close_open_band" default:"0.001" validate:"gte=0"`
	Folds            int           `yaml:"folds" default:"5" validate:"gte=1"`
	Embargo          int           `yaml:"embargo" default:"10" validate:"gte=0"`
	DisablePurge     bool          `yaml:"disable_purge"`
	TrainWindow      int           `yaml:"train_window" validate:"gte=0"`
	MinTrainRows     int           `yaml:"min_train_rows" default:"50" validate:"gte=1"`
	Thresholds       []float64     `yaml:"thresholds" validate:"required,min=1"`
	Direction        string        `yaml:"direction" default:"at_or_above" validate:"oneof=at_or_above at_or_below"`
	Side             string        `yaml:"side" default:"long" validate:"oneof=long short"`
	Cadence          string        `yaml:"cadence" default:"hourly" validate:"oneof=hourly daily none"`
	Epsilon          float64       `yaml:"epsilon" default:"1e-9" validate:"gt=0"`
	MinTrades        int           `yaml:"min_trades" default:"5" validate:"gte=0"`
	ScoreColumn      string        `yaml:"score_column" default:"score"`
	BatchConcurrency int           `yaml:"batch_concurrency" default:"4" validate:"gte=1"`
	Timeout          time.Duration `yaml:"timeout" default:"2m"`
	Lookback         time.Duration `yaml:"lookback" default:"8760h"`
}

var validate = validator.New()

// Load reads a YAML configuration file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML bytes into a validated Config.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if len(c.Pipeline.Thresholds) == 0 {
		c.Pipeline.Thresholds = []float64{0.5, 0.55, 0.6, 0.65, 0.7}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINLAB_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SCORER_URL"); v != "" {
		c.Scorer.URL = v
	}
	if v := os.Getenv("PIPELINE_FOLDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PIPELINE_FOLDS: %w", err)
		}
		c.Pipeline.Folds = n
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags plus cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("pipeline.timezone: %w", err)
	}
	if (c.Pipeline.SessionOpen == "") != (c.Pipeline.SessionClose == "") {
		return fmt.Errorf("pipeline.session_open and pipeline.session_close must be set together")
	}
	for _, th := range c.Pipeline.Thresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("pipeline.thresholds: %v outside [0,1]", th)
		}
	}
	return nil
}
