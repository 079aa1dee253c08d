// Command sweep runs the pipeline over a list of tickers and prints one line
// per ticker: the best threshold on success, the failed stage otherwise.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"FinLab/internal/di"
	"FinLab/internal/domain/models"
	"FinLab/internal/usecase"
	"FinLab/pkg/config"
	applogger "FinLab/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "config file path")
		tickers    = flag.String("tickers", "", "comma-separated tickers")
		from       = flag.String("from", "", "range start (RFC3339 or YYYY-MM-DD); default now minus lookback")
		to         = flag.String("to", "", "range end; default now")
		cadence    = flag.String("cadence", "hourly", "hourly, daily or none")
		label      = flag.String("label", "", "forward or close_to_open; default from config")
		set        = flag.String("set", "", "indicator set name or path; default from config")
		modelID    = flag.String("model", "", "model id sent to the scorer")
		persist    = flag.Bool("persist", false, "write matrices and results to the configured stores")
		asJSON     = flag.Bool("json", false, "print batch items as JSON")
	)
	flag.Parse()

	list := splitTickers(*tickers)
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "no tickers given")
		os.Exit(2)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	base, err := usecase.ParamsFromRun(models.RunRequest{
		ModelID: *modelID,
		From:    *from,
		To:      *to,
		Cadence: *cadence,
		Label:   *label,
		Persist: *persist,
	}, cfg.Pipeline.Lookback, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad range: %v\n", err)
		os.Exit(2)
	}
	base.SetRef = *set

	b, err := di.InitializeBatch(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := b.Close(); err != nil {
			b.Logger.Warn("close error", applogger.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b.Logger.Info("sweep started", applogger.Strings("tickers", list), applogger.String("cadence", *cadence))
	items := b.Runner.Run(ctx, base, list)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(items)
	} else {
		printTable(os.Stdout, items)
	}

	for _, it := range items {
		if it.Error != "" {
			os.Exit(1)
		}
	}
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func printTable(w io.Writer, items []models.BatchItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tSTATUS\tROWS\tFOLDS\tTHRESHOLD\tSHARPE\tTRADES\tFLAGS")
	for _, it := range items {
		if it.Result == nil {
			fmt.Fprintf(tw, "%s\tfailed at %s\t-\t-\t-\t-\t-\t%s\n", it.Ticker, it.Stage, it.Error)
			continue
		}
		r := it.Result
		if r.Evaluation == nil || r.Evaluation.Best == nil {
			fmt.Fprintf(tw, "%s\tok\t%d\t%d\t-\t-\t0\tno trades\n", it.Ticker, r.Rows, len(r.Folds))
			continue
		}
		best := r.Evaluation.Best
		if r.Evaluation.BestRobust != nil {
			best = r.Evaluation.BestRobust
		}
		fmt.Fprintf(tw, "%s\tok\t%d\t%d\t%.3f\t%.3f\t%d\t%s\n",
			it.Ticker, r.Rows, len(r.Folds), best.Threshold, best.Sharpe, best.Trades, strings.Join(best.Flags, ","))
	}
	_ = tw.Flush()
}
