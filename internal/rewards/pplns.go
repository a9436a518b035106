package rewards

import (
	"encoding/json"

	"github.com/bardlex/poolsim/pkg/errors"
)

// PPLNSConfig configures pay-per-last-N-shares.
type PPLNSConfig struct {
	N           int64   `json:"n"`
	BlockReward float64 `json:"block_reward"`
}

// PPLNS splits each block reward among the addresses of the last N shares,
// in proportion to how often each appears in that window.
type PPLNS struct {
	n      int
	reward float64
	book   book[MinerRecord]
	round  round
	last   BlockMetadata

	// ring buffer of the last n contributing addresses
	window []string
	head   int
}

// NewPPLNS creates a PPLNS scheme. N must be positive.
func NewPPLNS(cfg PPLNSConfig) (*PPLNS, error) {
	if cfg.N <= 0 {
		return nil, errors.Config("new_pplns", "n must be positive, got %d", cfg.N).
			WithContext("reward_scheme", SchemePPLNS)
	}
	if cfg.BlockReward < 0 {
		return nil, errors.Config("new_pplns", "block_reward must not be negative, got %v", cfg.BlockReward)
	}
	if cfg.BlockReward == 0 {
		cfg.BlockReward = 1
	}

	return &PPLNS{
		n:      int(cfg.N),
		reward: cfg.BlockReward,
		book: newBook(func(address string) *MinerRecord {
			return &MinerRecord{Address: address}
		}),
		last:   BlockMetadata{RewardScheme: SchemePPLNS},
		window: make([]string, 0, min(cfg.N, 1<<16)),
	}, nil
}

func newPPLNSFromArgs(args json.RawMessage) (Scheme, error) {
	var cfg PPLNSConfig
	if err := decodeArgs(SchemePPLNS, args, &cfg); err != nil {
		return nil, err
	}
	return NewPPLNS(cfg)
}

// Name implements Scheme.
func (s *PPLNS) Name() string { return SchemePPLNS }

// HandleShare implements Scheme.
func (s *PPLNS) HandleShare(address string, share Share) {
	rec := s.book.find(address)
	rec.SharesCount++
	s.push(address)

	n, found := s.round.add(share)
	if !found {
		return
	}
	rec.BlocksMined++
	s.distribute()
	s.last = BlockMetadata{
		RewardScheme:   SchemePPLNS,
		SharesPerBlock: n,
		MinerAddress:   address,
	}
}

// push appends address to the window, evicting the oldest entry once the
// window holds n addresses.
func (s *PPLNS) push(address string) {
	if len(s.window) < s.n {
		s.window = append(s.window, address)
		return
	}
	s.window[s.head] = address
	s.head = (s.head + 1) % s.n
}

// distribute pays the block reward over the window as it currently is,
// even when fewer than n shares were ever submitted.
func (s *PPLNS) distribute() {
	if len(s.window) == 0 {
		return
	}

	counts := make(map[string]int, len(s.window))
	order := make([]string, 0)
	for _, address := range s.Window() {
		if counts[address] == 0 {
			order = append(order, address)
		}
		counts[address]++
	}

	total := float64(len(s.window))
	for _, address := range order {
		s.book.find(address).Credits += s.reward * float64(counts[address]) / total
	}
}

// Window returns the window contents, oldest first.
func (s *PPLNS) Window() []string {
	out := make([]string, 0, len(s.window))
	out = append(out, s.window[s.head:]...)
	out = append(out, s.window[:s.head]...)
	return out
}

// BlockMetadata implements Scheme.
func (s *PPLNS) BlockMetadata() BlockReport { return s.last }

// MinerMetadata implements Scheme.
func (s *PPLNS) MinerMetadata(address string) (MinerReport, bool) {
	return minerMetadata(&s.book, address)
}

// Records implements Scheme.
func (s *PPLNS) Records() []MinerRecord { return copyRecords(&s.book) }

// Blocks implements Scheme.
func (s *PPLNS) Blocks() uint64 { return s.round.blocks }
