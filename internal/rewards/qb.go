package rewards

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"

	"github.com/bardlex/poolsim/pkg/errors"
)

// QBConfig configures the queue-based scheme.
type QBConfig struct {
	// PropCreditsLost is the fraction of the winner's balance removed at
	// payout. Unset means 1, a full reset.
	PropCreditsLost *float64 `json:"prop_credits_lost"`
	BlockReward     float64  `json:"block_reward"`
}

// QB is the queue-based scheme: shares earn one credit each and every
// block goes to the miner with the largest balance, whose balance is then
// cut by PropCreditsLost.
type QB struct {
	propLost float64
	reward   float64
	book     book[QBRecord]
	round    round
	last     QBBlockMetadata
}

// NewQB creates a queue-based scheme.
func NewQB(cfg QBConfig) (*QB, error) {
	propLost := 1.0
	if cfg.PropCreditsLost != nil {
		propLost = *cfg.PropCreditsLost
	}
	if propLost < 0 || propLost > 1 || math.IsNaN(propLost) {
		return nil, errors.Config("new_qb", "prop_credits_lost must be within [0,1], got %v", propLost).
			WithContext("reward_scheme", SchemeQB)
	}
	if cfg.BlockReward < 0 {
		return nil, errors.Config("new_qb", "block_reward must not be negative, got %v", cfg.BlockReward)
	}
	if cfg.BlockReward == 0 {
		cfg.BlockReward = 1
	}

	return &QB{
		propLost: propLost,
		reward:   cfg.BlockReward,
		book: newBook(func(address string) *QBRecord {
			return &QBRecord{MinerRecord: MinerRecord{Address: address}}
		}),
		last: QBBlockMetadata{
			BlockMetadata:   BlockMetadata{RewardScheme: SchemeQB},
			PropCreditsLost: propLost,
		},
	}, nil
}

func newQBFromArgs(args json.RawMessage) (Scheme, error) {
	var cfg QBConfig
	if err := decodeArgs(SchemeQB, args, &cfg); err != nil {
		return nil, err
	}
	return NewQB(cfg)
}

// Name implements Scheme.
func (s *QB) Name() string { return SchemeQB }

// HandleShare implements Scheme. A share that is a valid block pays out
// the queue head instead of earning a credit.
func (s *QB) HandleShare(address string, share Share) {
	rec := s.book.find(address)
	rec.SharesCount++

	n, found := s.round.add(share)
	if !found {
		rec.Credits++
		return
	}
	rec.BlocksMined++
	s.rewardTopMiner(address, n)
}

// rewardTopMiner pays the block reward to the highest balance and resets
// it.
func (s *QB) rewardTopMiner(finder string, sharesPerBlock uint64) {
	meta := QBBlockMetadata{
		BlockMetadata: BlockMetadata{
			RewardScheme:   SchemeQB,
			SharesPerBlock: sharesPerBlock,
			MinerAddress:   finder,
		},
		PropCreditsLost: s.propLost,
		CreditsSum:      uint64(s.CreditsSum()),
	}

	if top := s.top(); top != nil {
		before := top.Credits
		top.Credits = resetBalance(before, s.propLost)
		top.BlocksReceived++
		top.Rewards += s.reward

		meta.CreditBalanceReceiver = uint64(before)
		meta.ReceiverAddress = top.Address
		meta.ResetBalanceReceiver = uint64(top.Credits)
		meta.BlockReward = s.reward
	}

	s.last = meta
}

// resetBalance keeps the fraction 1-p of a balance, rounded down. The
// epsilon absorbs float error so that 100 at p=0.3 stays exactly 70.
func resetBalance(credits, propLost float64) float64 {
	return math.Floor(credits*(1-propLost) + 1e-9)
}

// top returns the first record of the ranking, or nil when there is none.
func (s *QB) top() *QBRecord {
	var best *QBRecord
	for _, rec := range s.book.records {
		if best == nil || rec.Credits > best.Credits {
			best = rec
		}
	}
	return best
}

// Ranked returns copies of all records sorted by descending credits. Ties
// keep first-seen order.
func (s *QB) Ranked() []QBRecord {
	out := make([]QBRecord, len(s.book.records))
	for i, rec := range s.book.records {
		out[i] = *rec
	}
	slices.SortStableFunc(out, func(a, b QBRecord) int {
		return cmp.Compare(b.Credits, a.Credits)
	})
	return out
}

// Credits returns the queue balance of address, zero if unknown.
func (s *QB) Credits(address string) float64 {
	if rec, ok := s.book.lookup(address); ok {
		return rec.Credits
	}
	return 0
}

// CreditsSum returns the total queue balance of the pool.
func (s *QB) CreditsSum() float64 {
	var sum float64
	for _, rec := range s.book.records {
		sum += rec.Credits
	}
	return sum
}

// QBBlockMetadata returns the typed snapshot of the last block.
func (s *QB) QBBlockMetadata() QBBlockMetadata { return s.last }

// BlockMetadata implements Scheme.
func (s *QB) BlockMetadata() BlockReport { return s.last }

// MinerMetadata implements Scheme.
func (s *QB) MinerMetadata(address string) (MinerReport, bool) {
	rec, ok := s.book.lookup(address)
	if !ok {
		return QBRecord{MinerRecord: MinerRecord{Address: address}}, false
	}
	return *rec, true
}

// Records implements Scheme.
func (s *QB) Records() []MinerRecord {
	out := make([]MinerRecord, len(s.book.records))
	for i, rec := range s.book.records {
		out[i] = rec.MinerRecord
	}
	return out
}

// Blocks implements Scheme.
func (s *QB) Blocks() uint64 { return s.round.blocks }
