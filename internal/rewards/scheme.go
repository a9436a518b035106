package rewards

import (
	"encoding/json"

	"github.com/bardlex/poolsim/pkg/errors"
)

// Scheme is a pool reward scheme. HandleShare is the only mutating
// operation; everything else returns copies.
type Scheme interface {
	// Name returns the registry key of the scheme.
	Name() string
	// HandleShare credits a share to address, creating its record on first
	// sight, and runs the payout logic when the share is a valid block.
	HandleShare(address string, share Share)
	// BlockMetadata returns the snapshot of the last block found.
	BlockMetadata() BlockReport
	// MinerMetadata returns the snapshot of address's record. The bool is
	// false, and the record zero, when address never submitted a share.
	MinerMetadata(address string) (MinerReport, bool)
	// Records returns all records in first-seen order.
	Records() []MinerRecord
	// Blocks returns the number of blocks handled.
	Blocks() uint64
}

// book holds one record per address in first-seen order. The order is
// what makes QB tie-breaking deterministic.
type book[R any] struct {
	records []*R
	index   map[string]int
	create  func(address string) *R
}

func newBook[R any](create func(address string) *R) book[R] {
	return book[R]{
		index:  make(map[string]int),
		create: create,
	}
}

// find returns the record of address, creating it if needed.
func (b *book[R]) find(address string) *R {
	if i, ok := b.index[address]; ok {
		return b.records[i]
	}
	rec := b.create(address)
	b.index[address] = len(b.records)
	b.records = append(b.records, rec)
	return rec
}

func (b *book[R]) lookup(address string) (*R, bool) {
	i, ok := b.index[address]
	if !ok {
		return nil, false
	}
	return b.records[i], true
}

// round counts shares since the previous block.
type round struct {
	shares uint64
	blocks uint64
}

// add counts a share and reports the round length when it closes a block.
func (r *round) add(share Share) (uint64, bool) {
	r.shares++
	if !share.IsValidBlock {
		return 0, false
	}
	n := r.shares
	r.shares = 0
	r.blocks++
	return n, true
}

// decodeArgs fills cfg from raw JSON arguments. Unknown fields are ignored
// and missing fields keep their zero value.
func decodeArgs(scheme string, args json.RawMessage, cfg any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "decode_args",
			"invalid reward scheme arguments").
			WithContext("reward_scheme", scheme)
	}
	return nil
}
