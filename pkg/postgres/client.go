// Package postgres owns the pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	applogger "FinLab/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type Client struct {
	pool *pgxpool.Pool
	l    *applogger.Logger
}

// NewClient parses cfg.URL, opens the pool and pings it.
func NewClient(ctx context.Context, cfg Config, l *applogger.Logger) (*Client, error) {
	if l == nil {
		l = applogger.Nop()
	}
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = 30 * time.Minute
	pc.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	l.Info("postgres pool established",
		applogger.Int("max_conns", int(pc.MaxConns)),
		applogger.Int("min_conns", int(pc.MinConns)),
	)
	return &Client{pool: pool, l: l}, nil
}

func (c *Client) Pool() *pgxpool.Pool { return c.pool }

func (c *Client) Health(ctx context.Context) error { return c.pool.Ping(ctx) }

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, s := range stmts {
		if _, err := c.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: init schema: %w", err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	c.pool.Close()
	c.l.Info("postgres pool closed")
	return nil
}
