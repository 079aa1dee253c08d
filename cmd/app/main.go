package main

import (
	"flag"
	"fmt"
	"os"

	"FinLab/internal/di"
	"FinLab/pkg/config"
	applogger "FinLab/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "app initialization failed: %v\n", err)
		os.Exit(1)
	}

	l, _ := applogger.New(&cfg.Log)
	l.Info("finlab starting",
		applogger.String("env", cfg.Environment),
		applogger.Bool("clickhouse", cfg.ClickHouse.Enabled),
		applogger.Bool("postgres", cfg.Postgres.Enabled),
		applogger.Bool("kafka", cfg.Kafka.Enabled),
		applogger.Bool("redis", cfg.Redis.Enabled),
	)

	if err := app.Run(); err != nil {
		l.Error("app error", applogger.Error(err))
		os.Exit(1)
	}
}
