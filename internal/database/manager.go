// Package database provides unified result export for poolsim.
// It coordinates writes across PostgreSQL, Redis, InfluxDB and LevelDB,
// each of which is optional.
package database

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/bardlex/poolsim/internal/config"
	"github.com/bardlex/poolsim/internal/database/influx"
	"github.com/bardlex/poolsim/internal/database/leveldb"
	"github.com/bardlex/poolsim/internal/database/postgres"
	"github.com/bardlex/poolsim/internal/database/redis"
	"github.com/bardlex/poolsim/internal/simulator"
	"github.com/bardlex/poolsim/pkg/circuit"
	"github.com/bardlex/poolsim/pkg/errors"
	"github.com/bardlex/poolsim/pkg/log"
	"github.com/bardlex/poolsim/pkg/retry"
)

// Backend names
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendInflux   = "influx"
	BackendLevelDB  = "leveldb"
)

// Manager exports simulation output to every configured database. It
// implements simulator.Recorder.
type Manager struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	Influx   *influx.Client
	LevelDB  *leveldb.Store

	// Repositories
	Experiments *postgres.ExperimentRepository
	Blocks      *postgres.BlockEventRepository
	Results     *postgres.MinerResultRepository

	logger *log.Logger

	// Error handling
	breakers    map[string]*circuit.Breaker
	retryConfig *retry.Config
	timeout     time.Duration
}

// Config holds configuration for all database systems. A nil entry
// disables that backend.
type Config struct {
	Postgres *postgres.Config
	Redis    *redis.Config
	Influx   *influx.Config
	LevelDB  *leveldb.Config
	Timeout  time.Duration
}

// ConfigFromService enables every backend whose address is set.
func ConfigFromService(cfg *config.Config) *Config {
	out := &Config{Timeout: cfg.ExportTimeout}

	if cfg.PostgresURL != "" {
		out.Postgres = &postgres.Config{
			URL:          cfg.PostgresURL,
			MaxOpenConns: 4,
			MaxIdleConns: 2,
			MaxLifetime:  30 * time.Minute,
		}
	}
	if cfg.RedisURL != "" {
		out.Redis = &redis.Config{
			URL:          cfg.RedisURL,
			PoolSize:     4,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			TTL:          7 * 24 * time.Hour,
		}
	}
	if cfg.InfluxURL != "" {
		out.Influx = &influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}
	}
	if cfg.LevelDBPath != "" {
		out.LevelDB = &leveldb.Config{Path: cfg.LevelDBPath}
	}

	return out
}

// Empty reports whether no backend is enabled.
func (c *Config) Empty() bool {
	return c.Postgres == nil && c.Redis == nil && c.Influx == nil && c.LevelDB == nil
}

// NewManager connects to every enabled backend. A failing connection
// closes those already opened.
func NewManager(ctx context.Context, cfg *Config, logger *log.Logger) (*Manager, error) {
	m := &Manager{
		logger:      logger.WithComponent("database"),
		breakers:    make(map[string]*circuit.Breaker),
		retryConfig: retry.ExportConfig(),
		timeout:     cfg.Timeout,
	}
	if m.timeout <= 0 {
		m.timeout = 10 * time.Second
	}

	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         30 * time.Second,
		ResetTimeout:    60 * time.Second,
	}

	if cfg.Postgres != nil {
		pgClient, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			return nil, m.abort(errors.Wrap(err, errors.ErrorTypeDatabase, "postgres_connection",
				"failed to connect to PostgreSQL database"))
		}
		m.Postgres = pgClient
		if err := pgClient.EnsureSchema(ctx); err != nil {
			return nil, m.abort(errors.Wrap(err, errors.ErrorTypeDatabase, "postgres_schema",
				"failed to create PostgreSQL schema"))
		}
		m.Experiments = postgres.NewExperimentRepository(pgClient.DB())
		m.Blocks = postgres.NewBlockEventRepository(pgClient.DB())
		m.Results = postgres.NewMinerResultRepository(pgClient.DB())
		m.breakers[BackendPostgres] = circuit.New(BackendPostgres, cbConfig)
	}

	if cfg.Redis != nil {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, m.abort(errors.Wrap(err, errors.ErrorTypeDatabase, "redis_connection",
				"failed to connect to Redis database"))
		}
		m.Redis = redisClient
		m.breakers[BackendRedis] = circuit.New(BackendRedis, cbConfig)
	}

	if cfg.Influx != nil {
		influxClient, err := influx.NewClient(cfg.Influx)
		if err != nil {
			return nil, m.abort(errors.Wrap(err, errors.ErrorTypeDatabase, "influx_connection",
				"failed to connect to InfluxDB database"))
		}
		m.Influx = influxClient
		m.breakers[BackendInflux] = circuit.New(BackendInflux, cbConfig)
	}

	if cfg.LevelDB != nil {
		store, err := leveldb.Open(cfg.LevelDB)
		if err != nil {
			return nil, m.abort(errors.Wrap(err, errors.ErrorTypeDatabase, "leveldb_open",
				"failed to open LevelDB store").
				WithContext("path", cfg.LevelDB.Path))
		}
		m.LevelDB = store
		m.breakers[BackendLevelDB] = circuit.New(BackendLevelDB, cbConfig)
	}

	m.logger.Info("database manager ready", "backends", m.Backends())
	return m, nil
}

// abort closes whatever was opened and attaches close failures to err.
func (m *Manager) abort(err *errors.ServiceError) error {
	if closeErr := m.Close(); closeErr != nil {
		return err.WithContext("cleanup_errors", closeErr.Error())
	}
	return err
}

// Backends lists the enabled backends.
func (m *Manager) Backends() []string {
	var out []string
	if m.Postgres != nil {
		out = append(out, BackendPostgres)
	}
	if m.Redis != nil {
		out = append(out, BackendRedis)
	}
	if m.Influx != nil {
		out = append(out, BackendInflux)
	}
	if m.LevelDB != nil {
		out = append(out, BackendLevelDB)
	}
	return out
}

// Name implements simulator.Recorder.
func (m *Manager) Name() string { return "database" }

// Close closes all database connections
func (m *Manager) Close() error {
	var errs []error

	if m.Postgres != nil {
		if err := m.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("PostgreSQL close error: %w", err))
		}
	}

	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if m.Influx != nil {
		m.Influx.Close()
	}

	if m.LevelDB != nil {
		if err := m.LevelDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("LevelDB close error: %w", err))
		}
	}

	return stderrors.Join(errs...)
}

// Health checks the health of all database connections
func (m *Manager) Health(ctx context.Context) error {
	if m.Postgres != nil {
		if err := m.Postgres.Health(ctx); err != nil {
			return fmt.Errorf("PostgreSQL health check failed: %w", err)
		}
	}

	if m.Redis != nil {
		if err := m.Redis.Health(ctx); err != nil {
			return fmt.Errorf("redis health check failed: %w", err)
		}
	}

	if m.Influx != nil {
		if err := m.Influx.Health(ctx); err != nil {
			return fmt.Errorf("InfluxDB health check failed: %w", err)
		}
	}

	return nil
}

// exec runs one backend call under its circuit breaker, with retries and
// the export timeout.
func (m *Manager) exec(ctx context.Context, backend, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	return m.breakers[backend].Execute(ctx, func() error {
		return retry.Do(ctx, m.retryConfig, func() error {
			if err := fn(ctx); err != nil {
				return errors.Wrap(err, errors.ErrorTypeDatabase, operation,
					"backend call failed").
					WithContext("backend", backend)
			}
			return nil
		})
	})
}

// RecordBlock implements simulator.Recorder. Every backend is attempted;
// the failures are joined.
func (m *Manager) RecordBlock(ctx context.Context, ev simulator.BlockEvent) error {
	var errs []error

	if m.Postgres != nil {
		row := BlockRow(ev)
		errs = append(errs, m.exec(ctx, BackendPostgres, "record_block", func(ctx context.Context) error {
			return m.Blocks.CreateBlockEvent(ctx, row)
		}))
	}

	if m.Redis != nil {
		errs = append(errs, m.exec(ctx, BackendRedis, "record_block", func(ctx context.Context) error {
			return m.Redis.SetLatestBlock(ctx, ev.ExperimentID, ev.Pool, ev.ID, ev)
		}))
	}

	if m.Influx != nil {
		point := influx.BlockPoint(InfluxBlock(ev))
		errs = append(errs, m.exec(ctx, BackendInflux, "record_block", func(ctx context.Context) error {
			return m.Influx.Write(ctx, point)
		}))
	}

	if m.LevelDB != nil {
		errs = append(errs, m.exec(ctx, BackendLevelDB, "record_block", func(context.Context) error {
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			return m.LevelDB.PutBlock(ev.ExperimentID, ev.Sequence, ev.Pool, data)
		}))
	}

	return stderrors.Join(errs...)
}

// RecordResult implements simulator.Recorder.
func (m *Manager) RecordResult(ctx context.Context, result *simulator.Result) error {
	var errs []error

	if m.Postgres != nil {
		summary := ExperimentRow(result)
		rows := MinerRows(result)
		errs = append(errs, m.exec(ctx, BackendPostgres, "record_result", func(ctx context.Context) error {
			if err := m.Experiments.Upsert(ctx, summary); err != nil {
				return err
			}
			return m.Results.ReplaceMinerResults(ctx, result.ExperimentID, rows)
		}))
	}

	if m.Redis != nil {
		errs = append(errs, m.exec(ctx, BackendRedis, "record_result", func(ctx context.Context) error {
			if err := m.Redis.SetResult(ctx, result.ExperimentID, result); err != nil {
				return err
			}
			for _, p := range result.Pools {
				if err := m.Redis.SetLeaderboard(ctx, result.ExperimentID, p.Name, Leaderboard(p)); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	if m.Influx != nil {
		points := InfluxResultPoints(result)
		errs = append(errs, m.exec(ctx, BackendInflux, "record_result", func(ctx context.Context) error {
			return m.Influx.Write(ctx, points...)
		}))
	}

	if m.LevelDB != nil {
		errs = append(errs, m.exec(ctx, BackendLevelDB, "record_result", func(context.Context) error {
			data, err := json.Marshal(result)
			if err != nil {
				return err
			}
			return m.LevelDB.PutResult(result.ExperimentID, data)
		}))
	}

	return stderrors.Join(errs...)
}
