package rewards

import (
	"encoding/json"

	"github.com/bardlex/poolsim/pkg/errors"
)

// PPSConfig configures pay-per-share.
type PPSConfig struct {
	// Rate is the credit paid per share; zero means one credit.
	Rate float64 `json:"rate"`
}

// PPS pays every share immediately. A block only updates the metadata.
type PPS struct {
	rate  float64
	book  book[MinerRecord]
	round round
	last  BlockMetadata
}

// NewPPS creates a pay-per-share scheme.
func NewPPS(cfg PPSConfig) (*PPS, error) {
	if cfg.Rate < 0 {
		return nil, errors.Config("new_pps", "rate must not be negative, got %v", cfg.Rate)
	}
	if cfg.Rate == 0 {
		cfg.Rate = 1
	}

	return &PPS{
		rate: cfg.Rate,
		book: newBook(func(address string) *MinerRecord {
			return &MinerRecord{Address: address}
		}),
		last: BlockMetadata{RewardScheme: SchemePPS},
	}, nil
}

func newPPSFromArgs(args json.RawMessage) (Scheme, error) {
	var cfg PPSConfig
	if err := decodeArgs(SchemePPS, args, &cfg); err != nil {
		return nil, err
	}
	return NewPPS(cfg)
}

// Name implements Scheme.
func (s *PPS) Name() string { return SchemePPS }

// HandleShare implements Scheme.
func (s *PPS) HandleShare(address string, share Share) {
	rec := s.book.find(address)
	rec.SharesCount++
	rec.Credits += s.rate

	n, found := s.round.add(share)
	if !found {
		return
	}
	rec.BlocksMined++
	s.last = BlockMetadata{
		RewardScheme:   SchemePPS,
		SharesPerBlock: n,
		MinerAddress:   address,
	}
}

// BlockMetadata implements Scheme.
func (s *PPS) BlockMetadata() BlockReport { return s.last }

// MinerMetadata implements Scheme.
func (s *PPS) MinerMetadata(address string) (MinerReport, bool) {
	return minerMetadata(&s.book, address)
}

// Records implements Scheme.
func (s *PPS) Records() []MinerRecord { return copyRecords(&s.book) }

// Blocks implements Scheme.
func (s *PPS) Blocks() uint64 { return s.round.blocks }

func minerMetadata(b *book[MinerRecord], address string) (MinerReport, bool) {
	rec, ok := b.lookup(address)
	if !ok {
		return MinerRecord{Address: address}, false
	}
	return *rec, true
}

func copyRecords(b *book[MinerRecord]) []MinerRecord {
	out := make([]MinerRecord, len(b.records))
	for i, rec := range b.records {
		out[i] = *rec
	}
	return out
}
