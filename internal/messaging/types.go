package messaging

import (
	"encoding/json"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bardlex/poolsim/internal/simulator"
)

// BlockMessage is the wire form of a block event
type BlockMessage struct {
	ID             string    `json:"id"`
	ExperimentID   string    `json:"experiment_id"`
	Sequence       uint64    `json:"sequence"`
	Pool           string    `json:"pool"`
	RewardScheme   string    `json:"reward_scheme"`
	MinerAddress   string    `json:"miner_address"`
	SharesPerBlock uint64    `json:"shares_per_block"`
	FoundAt        time.Time `json:"found_at"`

	// Queue payout, only set for QB pools
	ReceiverAddress       string  `json:"receiver_address,omitempty"`
	CreditBalanceReceiver uint64  `json:"credit_balance_receiver,omitempty"`
	ResetBalanceReceiver  uint64  `json:"reset_balance_receiver,omitempty"`
	PropCreditsLost       float64 `json:"prop_credits_lost,omitempty"`
	CreditsSum            uint64  `json:"credits_sum,omitempty"`
	BlockReward           float64 `json:"block_reward,omitempty"`
}

// NewBlockMessage flattens a block event
func NewBlockMessage(ev simulator.BlockEvent) BlockMessage {
	meta := ev.Metadata.Block()
	msg := BlockMessage{
		ID:             ev.ID,
		ExperimentID:   ev.ExperimentID,
		Sequence:       ev.Sequence,
		Pool:           ev.Pool,
		RewardScheme:   meta.RewardScheme,
		MinerAddress:   meta.MinerAddress,
		SharesPerBlock: meta.SharesPerBlock,
		FoundAt:        ev.FoundAt,
	}
	if qb, ok := ev.QB(); ok {
		msg.ReceiverAddress = qb.ReceiverAddress
		msg.CreditBalanceReceiver = qb.CreditBalanceReceiver
		msg.ResetBalanceReceiver = qb.ResetBalanceReceiver
		msg.PropCreditsLost = qb.PropCreditsLost
		msg.CreditsSum = qb.CreditsSum
		msg.BlockReward = qb.BlockReward
	}
	return msg
}

// ResultStruct converts a result into a protobuf Struct so it can travel
// through PublishProto.
func ResultStruct(r *simulator.Result) (*structpb.Struct, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}
