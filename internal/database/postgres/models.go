package postgres

import (
	"time"
)

// Experiment is the summary row of a finished run
type Experiment struct {
	ID         string    `db:"id" json:"id"`
	Seed       uint64    `db:"seed" json:"seed"`
	Shares     int64     `db:"shares" json:"shares"`
	Blocks     int64     `db:"blocks" json:"blocks"`
	ElapsedMs  float64   `db:"elapsed_ms" json:"elapsed_ms"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

// BlockEvent is a block handled by a pool. The receiver columns are only
// set for queue-based pools.
type BlockEvent struct {
	ID                    string    `db:"id" json:"id"`
	ExperimentID          string    `db:"experiment_id" json:"experiment_id"`
	Sequence              int64     `db:"sequence" json:"sequence"`
	Pool                  string    `db:"pool" json:"pool"`
	RewardScheme          string    `db:"reward_scheme" json:"reward_scheme"`
	MinerAddress          string    `db:"miner_address" json:"miner_address"`
	SharesPerBlock        int64     `db:"shares_per_block" json:"shares_per_block"`
	ReceiverAddress       *string   `db:"receiver_address" json:"receiver_address"`
	CreditBalanceReceiver *int64    `db:"credit_balance_receiver" json:"credit_balance_receiver"`
	ResetBalanceReceiver  *int64    `db:"reset_balance_receiver" json:"reset_balance_receiver"`
	PropCreditsLost       *float64  `db:"prop_credits_lost" json:"prop_credits_lost"`
	CreditsSum            *int64    `db:"credits_sum" json:"credits_sum"`
	FoundAt               time.Time `db:"found_at" json:"found_at"`
}

// MinerResult is one final miner record of a pool
type MinerResult struct {
	ExperimentID string  `db:"experiment_id" json:"experiment_id"`
	Pool         string  `db:"pool" json:"pool"`
	MinerAddress string  `db:"miner_address" json:"miner_address"`
	SharesCount  int64   `db:"shares_count" json:"shares_count"`
	BlocksMined  int64   `db:"blocks_mined" json:"blocks_mined"`
	Credits      float64 `db:"credits" json:"credits"`
}
