// Package postgres provides the PostgreSQL client and repositories that
// persist simulation output: experiments, block events and final miner
// records.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL driver for database/sql
	_ "github.com/lib/pq"
)

// Client wraps PostgreSQL database operations
type Client struct {
	db *sql.DB
}

// Config holds PostgreSQL connection configuration
type Config struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// NewClient creates a new PostgreSQL client
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Health checks database connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// BeginTx starts a new transaction
func (c *Client) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}

// DB returns the underlying sql.DB for advanced operations
func (c *Client) DB() *sql.DB {
	return c.db
}

// EnsureSchema creates the tables poolsim writes to
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Schema is the DDL of the poolsim tables.
const Schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id          TEXT PRIMARY KEY,
	seed        NUMERIC(20, 0) NOT NULL,
	shares      BIGINT NOT NULL,
	blocks      BIGINT NOT NULL,
	elapsed_ms  DOUBLE PRECISION NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS block_events (
	id                      TEXT PRIMARY KEY,
	experiment_id           TEXT NOT NULL,
	sequence                BIGINT NOT NULL,
	pool                    TEXT NOT NULL,
	reward_scheme           TEXT NOT NULL,
	miner_address           TEXT NOT NULL,
	shares_per_block        BIGINT NOT NULL,
	receiver_address        TEXT,
	credit_balance_receiver BIGINT,
	reset_balance_receiver  BIGINT,
	prop_credits_lost       DOUBLE PRECISION,
	credits_sum             BIGINT,
	found_at                TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS block_events_experiment_idx
	ON block_events (experiment_id, sequence);

CREATE TABLE IF NOT EXISTS miner_results (
	experiment_id TEXT NOT NULL,
	pool          TEXT NOT NULL,
	miner_address TEXT NOT NULL,
	shares_count  BIGINT NOT NULL,
	blocks_mined  BIGINT NOT NULL,
	credits       DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (experiment_id, pool, miner_address)
);
`
