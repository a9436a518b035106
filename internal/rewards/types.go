// Package rewards implements the pool reward schemes (PPS, PPLNS and
// queue-based) and the per-miner bookkeeping they own.
package rewards

// Share is one submitted contribution. A share is consumed once by a share
// handler and at most once by a reward scheme; it is never retained.
type Share struct {
	IsValidBlock bool `json:"is_valid_block"`
}

// MinerRecord is the bookkeeping a scheme keeps for one address.
type MinerRecord struct {
	Address     string  `json:"miner_address"`
	SharesCount uint64  `json:"shares_count"`
	BlocksMined uint64  `json:"blocks_mined"`
	Credits     float64 `json:"credits"`
}

// Record returns the record itself.
func (r MinerRecord) Record() MinerRecord {
	return r
}

// QBRecord is the queue-based record. Credits is the queue balance and
// only ever holds whole numbers; ranking sorts on it.
type QBRecord struct {
	MinerRecord
	BlocksReceived uint64  `json:"blocks_received"`
	Rewards        float64 `json:"rewards"`
}

// MinerReport is satisfied by every record type.
type MinerReport interface {
	Record() MinerRecord
}

// BlockMetadata describes the most recently found block.
type BlockMetadata struct {
	RewardScheme   string `json:"reward_scheme"`
	SharesPerBlock uint64 `json:"shares_per_block"`
	MinerAddress   string `json:"miner_address"`
}

// Block returns the metadata itself.
func (b BlockMetadata) Block() BlockMetadata {
	return b
}

// QBBlockMetadata adds the queue payout transaction to BlockMetadata.
type QBBlockMetadata struct {
	BlockMetadata
	CreditBalanceReceiver uint64  `json:"credit_balance_receiver"`
	ReceiverAddress       string  `json:"receiver_address"`
	ResetBalanceReceiver  uint64  `json:"reset_balance_receiver"`
	PropCreditsLost       float64 `json:"prop_credits_lost"`
	CreditsSum            uint64  `json:"credits_sum"`
	BlockReward           float64 `json:"block_reward"`
}

// BlockReport is satisfied by every block metadata type.
type BlockReport interface {
	Block() BlockMetadata
}
