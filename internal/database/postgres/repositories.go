package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// ExperimentRepository handles experiment summaries
type ExperimentRepository struct {
	db *sql.DB
}

// NewExperimentRepository creates a new experiment repository
func NewExperimentRepository(db *sql.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

// Upsert stores the summary of a run, replacing an earlier run with the
// same id
func (r *ExperimentRepository) Upsert(ctx context.Context, exp *Experiment) error {
	query := `
		INSERT INTO experiments (id, seed, shares, blocks, elapsed_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			seed = EXCLUDED.seed,
			shares = EXCLUDED.shares,
			blocks = EXCLUDED.blocks,
			elapsed_ms = EXCLUDED.elapsed_ms,
			finished_at = EXCLUDED.finished_at`

	_, err := r.db.ExecContext(ctx, query,
		exp.ID, strconv.FormatUint(exp.Seed, 10), exp.Shares, exp.Blocks, exp.ElapsedMs, exp.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert experiment: %w", err)
	}
	return nil
}

// GetExperiment retrieves the summary of a run
func (r *ExperimentRepository) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	query := `
		SELECT id, seed::TEXT, shares, blocks, elapsed_ms, finished_at
		FROM experiments WHERE id = $1`

	exp := &Experiment{}
	var seed string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&exp.ID, &seed, &exp.Shares, &exp.Blocks, &exp.ElapsedMs, &exp.FinishedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("experiment not found")
		}
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}

	if exp.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid stored seed %q: %w", seed, err)
	}
	return exp, nil
}

// BlockEventRepository handles block events
type BlockEventRepository struct {
	db *sql.DB
}

// NewBlockEventRepository creates a new block event repository
func NewBlockEventRepository(db *sql.DB) *BlockEventRepository {
	return &BlockEventRepository{db: db}
}

// CreateBlockEvent stores a block event. Replaying an event is a no-op.
func (r *BlockEventRepository) CreateBlockEvent(ctx context.Context, ev *BlockEvent) error {
	query := `
		INSERT INTO block_events (id, experiment_id, sequence, pool, reward_scheme, miner_address,
		                          shares_per_block, receiver_address, credit_balance_receiver,
		                          reset_balance_receiver, prop_credits_lost, credits_sum, found_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.ExperimentID, ev.Sequence, ev.Pool, ev.RewardScheme, ev.MinerAddress,
		ev.SharesPerBlock, ev.ReceiverAddress, ev.CreditBalanceReceiver,
		ev.ResetBalanceReceiver, ev.PropCreditsLost, ev.CreditsSum, ev.FoundAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create block event: %w", err)
	}
	return nil
}

// GetBlockEvents retrieves the block events of a run in share order
func (r *BlockEventRepository) GetBlockEvents(ctx context.Context, experimentID string, limit, offset int) ([]*BlockEvent, error) {
	query := `
		SELECT id, experiment_id, sequence, pool, reward_scheme, miner_address, shares_per_block,
		       receiver_address, credit_balance_receiver, reset_balance_receiver,
		       prop_credits_lost, credits_sum, found_at
		FROM block_events
		WHERE experiment_id = $1
		ORDER BY sequence ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, experimentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get block events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []*BlockEvent
	for rows.Next() {
		ev := &BlockEvent{}
		err := rows.Scan(
			&ev.ID, &ev.ExperimentID, &ev.Sequence, &ev.Pool, &ev.RewardScheme, &ev.MinerAddress,
			&ev.SharesPerBlock, &ev.ReceiverAddress, &ev.CreditBalanceReceiver,
			&ev.ResetBalanceReceiver, &ev.PropCreditsLost, &ev.CreditsSum, &ev.FoundAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating block events: %w", err)
	}

	return events, nil
}

// MinerResultRepository handles final miner records
type MinerResultRepository struct {
	db *sql.DB
}

// NewMinerResultRepository creates a new miner result repository
func NewMinerResultRepository(db *sql.DB) *MinerResultRepository {
	return &MinerResultRepository{db: db}
}

// ReplaceMinerResults stores the records of a run in one transaction,
// dropping those of an earlier run with the same id
func (r *MinerResultRepository) ReplaceMinerResults(ctx context.Context, experimentID string, results []*MinerResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM miner_results WHERE experiment_id = $1`, experimentID); err != nil {
		return fmt.Errorf("failed to clear miner results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO miner_results (experiment_id, pool, miner_address, shares_count, blocks_mined, credits)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare miner result insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, res := range results {
		if _, err := stmt.ExecContext(ctx,
			experimentID, res.Pool, res.MinerAddress, res.SharesCount, res.BlocksMined, res.Credits,
		); err != nil {
			return fmt.Errorf("failed to insert miner result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit miner results: %w", err)
	}
	return nil
}

// GetMinerResults retrieves the final records of a pool, best paid first
func (r *MinerResultRepository) GetMinerResults(ctx context.Context, experimentID, pool string) ([]*MinerResult, error) {
	query := `
		SELECT experiment_id, pool, miner_address, shares_count, blocks_mined, credits
		FROM miner_results
		WHERE experiment_id = $1 AND pool = $2
		ORDER BY credits DESC, miner_address ASC`

	rows, err := r.db.QueryContext(ctx, query, experimentID, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get miner results: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []*MinerResult
	for rows.Next() {
		res := &MinerResult{}
		if err := rows.Scan(
			&res.ExperimentID, &res.Pool, &res.MinerAddress, &res.SharesCount, &res.BlocksMined, &res.Credits,
		); err != nil {
			return nil, fmt.Errorf("failed to scan miner result: %w", err)
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating miner results: %w", err)
	}

	return results, nil
}
