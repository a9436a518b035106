package database

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/bardlex/poolsim/internal/database/postgres"
	"github.com/bardlex/poolsim/internal/database/redis"
)

// ReportOptions selects what Report reads back.
type ReportOptions struct {
	Pools []string
	// Top is the leaderboard length read from Redis.
	Top int64
	// BlockLimit caps the block events read from PostgreSQL.
	BlockLimit int
	// Range is how far back the InfluxDB query looks.
	Range time.Duration
}

// Report is what every enabled backend holds for one experiment. A nil
// section means the backend is disabled.
type Report struct {
	ExperimentID string          `json:"experiment_id"`
	Postgres     *PostgresReport `json:"postgres,omitempty"`
	Redis        *RedisReport    `json:"redis,omitempty"`
	Influx       *InfluxReport   `json:"influx,omitempty"`
	LevelDB      *LevelDBReport  `json:"leveldb,omitempty"`
}

// PostgresReport holds the stored rows of a run.
type PostgresReport struct {
	Experiment *postgres.Experiment               `json:"experiment,omitempty"`
	Blocks     []*postgres.BlockEvent             `json:"blocks"`
	Miners     map[string][]*postgres.MinerResult `json:"miners"`
}

// RedisReport holds the live view of a run.
type RedisReport struct {
	Pools  map[string]*RedisPool `json:"pools"`
	Result json.RawMessage       `json:"result,omitempty"`
}

// RedisPool is the live view of one pool.
type RedisPool struct {
	LastBlock json.RawMessage `json:"last_block,omitempty"`
	Blocks    int64           `json:"blocks"`
	Top       []redis.Credit  `json:"top"`
}

// InfluxReport holds the aggregated series of a run.
type InfluxReport struct {
	BlockCounts map[string]int64 `json:"block_counts"`
}

// LevelDBReport holds the local log of a run.
type LevelDBReport struct {
	Blocks int             `json:"blocks"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Report reads back what the enabled backends stored for experimentID.
// Every backend is attempted; the report holds what could be read and the
// failures are joined.
func (m *Manager) Report(ctx context.Context, experimentID string, opts ReportOptions) (*Report, error) {
	report := &Report{ExperimentID: experimentID}
	var errs []error

	if m.Postgres != nil {
		report.Postgres = &PostgresReport{Miners: make(map[string][]*postgres.MinerResult)}
		errs = append(errs, m.exec(ctx, BackendPostgres, "report", func(ctx context.Context) error {
			exp, err := m.Experiments.GetExperiment(ctx, experimentID)
			if err != nil {
				return err
			}
			blocks, err := m.Blocks.GetBlockEvents(ctx, experimentID, opts.BlockLimit, 0)
			if err != nil {
				return err
			}
			report.Postgres.Experiment = exp
			report.Postgres.Blocks = blocks
			for _, pool := range opts.Pools {
				results, err := m.Results.GetMinerResults(ctx, experimentID, pool)
				if err != nil {
					return err
				}
				report.Postgres.Miners[pool] = results
			}
			return nil
		}))
	}

	if m.Redis != nil {
		report.Redis = &RedisReport{Pools: make(map[string]*RedisPool)}
		errs = append(errs, m.exec(ctx, BackendRedis, "report", func(ctx context.Context) error {
			for _, pool := range opts.Pools {
				entry := &RedisPool{}
				if _, err := m.Redis.GetLatestBlock(ctx, experimentID, pool, &entry.LastBlock); err != nil {
					return err
				}
				count, err := m.Redis.GetBlockCount(ctx, experimentID, pool)
				if err != nil {
					return err
				}
				entry.Blocks = count
				if entry.Top, err = m.Redis.TopCredits(ctx, experimentID, pool, opts.Top); err != nil {
					return err
				}
				report.Redis.Pools[pool] = entry
			}
			var result json.RawMessage
			if _, err := m.Redis.GetResult(ctx, experimentID, &result); err != nil {
				return err
			}
			report.Redis.Result = result
			return nil
		}))
	}

	if m.Influx != nil {
		report.Influx = &InfluxReport{}
		errs = append(errs, m.exec(ctx, BackendInflux, "report", func(ctx context.Context) error {
			counts, err := m.Influx.GetBlockCounts(ctx, experimentID, opts.Range)
			if err != nil {
				return err
			}
			report.Influx.BlockCounts = counts
			return nil
		}))
	}

	if m.LevelDB != nil {
		report.LevelDB = &LevelDBReport{}
		errs = append(errs, m.exec(ctx, BackendLevelDB, "report", func(context.Context) error {
			blocks, err := m.LevelDB.Blocks(experimentID)
			if err != nil {
				return err
			}
			result, _, err := m.LevelDB.Result(experimentID)
			if err != nil {
				return err
			}
			report.LevelDB.Blocks = len(blocks)
			report.LevelDB.Result = result
			return nil
		}))
	}

	return report, stderrors.Join(errs...)
}
