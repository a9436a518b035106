package simulator

import (
	"time"

	"github.com/bardlex/poolsim/internal/pool"
	"github.com/bardlex/poolsim/internal/rewards"
)

// BlockEvent is a block handled by a pool's reward scheme during a run.
type BlockEvent struct {
	ID           string              `json:"id"`
	ExperimentID string              `json:"experiment_id"`
	Sequence     uint64              `json:"sequence"`
	Pool         string              `json:"pool"`
	Metadata     rewards.BlockReport `json:"metadata"`
	FoundAt      time.Time           `json:"found_at"`
}

// QB returns the queue payout of the event, if the pool runs QB.
func (e BlockEvent) QB() (rewards.QBBlockMetadata, bool) {
	meta, ok := e.Metadata.(rewards.QBBlockMetadata)
	return meta, ok
}

// Result is the final state of a run.
type Result struct {
	ExperimentID string        `json:"experiment_id"`
	Seed         uint64        `json:"seed"`
	Shares       uint64        `json:"shares"`
	Blocks       uint64        `json:"blocks"`
	Elapsed      time.Duration `json:"elapsed"`
	FinishedAt   time.Time     `json:"finished_at"`
	Pools        []PoolResult  `json:"pools"`
	Miners       []MinerResult `json:"miners"`
}

// PoolResult is the final state of one pool.
type PoolResult struct {
	Name         string                `json:"name"`
	RewardScheme string                `json:"reward_scheme"`
	Blocks       uint64                `json:"blocks"`
	Luck         float64               `json:"luck"`
	Members      int                   `json:"members"`
	LastBlock    rewards.BlockReport   `json:"last_block"`
	Records      []rewards.MinerRecord `json:"records"`
}

// MinerResult is the final state of one miner.
type MinerResult struct {
	Address   string            `json:"address"`
	Hashrate  float64           `json:"hashrate"`
	Behaviour string            `json:"behaviour"`
	Pool      string            `json:"pool"`
	Stats     pool.HandlerStats `json:"stats"`
}

// Pool returns the result of the pool called name.
func (r *Result) Pool(name string) (PoolResult, bool) {
	for _, p := range r.Pools {
		if p.Name == name {
			return p, true
		}
	}
	return PoolResult{}, false
}
