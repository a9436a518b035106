package behaviour

import (
	"github.com/bardlex/poolsim/internal/pool"
	"github.com/bardlex/poolsim/internal/random"
	"github.com/bardlex/poolsim/internal/rewards"
	"github.com/bardlex/poolsim/pkg/errors"
)

// Default submits every share under the miner's own address.
type Default struct{}

// HandleShare implements pool.ShareHandler.
func (Default) HandleShare(m *pool.Miner, share rewards.Share) {
	m.Submit(m.Address(), share)
}

// Stats implements pool.ShareHandler.
func (Default) Stats() pool.HandlerStats { return pool.HandlerStats{} }

// Withholding drops every share that is a valid block and submits the rest.
type Withholding struct {
	stats pool.HandlerStats
}

// HandleShare implements pool.ShareHandler.
func (h *Withholding) HandleShare(m *pool.Miner, share rewards.Share) {
	if share.IsValidBlock {
		h.stats.SharesWithheld++
		h.stats.ValidSharesWithheld++
		return
	}
	m.Submit(m.Address(), share)
}

// Stats implements pool.ShareHandler.
func (h *Withholding) Stats() pool.HandlerStats { return h.stats }

// QBWithholding withholds any share while the miner has a victim in a
// queue-based pool, keeping the victim from overtaking it.
type QBWithholding struct {
	cfg   BehaviourConfig
	stats pool.HandlerStats
}

// NewQBWithholding creates a queue-based withholding handler.
func NewQBWithholding(cfg BehaviourConfig) (*QBWithholding, error) {
	if err := cfg.validate(QBShareWithholding); err != nil {
		return nil, err
	}
	return &QBWithholding{cfg: cfg}, nil
}

// HandleShare implements pool.ShareHandler.
func (h *QBWithholding) HandleShare(m *pool.Miner, share rewards.Share) {
	if _, ok := findVictim(m, h.cfg); ok {
		h.stats.SharesWithheld++
		if share.IsValidBlock {
			h.stats.ValidSharesWithheld++
		}
		return
	}
	m.Submit(m.Address(), share)
}

// Stats implements pool.ShareHandler.
func (h *QBWithholding) Stats() pool.HandlerStats { return h.stats }

// Donation credits the share to the victim instead, pushing the victim up
// the queue.
type Donation struct {
	cfg   BehaviourConfig
	stats pool.HandlerStats
}

// NewDonation creates a donation handler.
func NewDonation(cfg BehaviourConfig) (*Donation, error) {
	if err := cfg.validate(ShareDonation); err != nil {
		return nil, err
	}
	return &Donation{cfg: cfg}, nil
}

// HandleShare implements pool.ShareHandler.
func (h *Donation) HandleShare(m *pool.Miner, share rewards.Share) {
	if v, ok := findVictim(m, h.cfg); ok {
		h.stats.SharesDonated++
		if share.IsValidBlock {
			h.stats.ValidSharesDonated++
		}
		m.Submit(v, share)
		return
	}
	m.Submit(m.Address(), share)
}

// Stats implements pool.ShareHandler.
func (h *Donation) Stats() pool.HandlerStats { return h.stats }

// MultipleAddresses mines under extra pseudonymous addresses and, when a
// victim exists, credits the share to one of them picked at random.
type MultipleAddresses struct {
	cfg       MultiAddressConfig
	src       *random.Source
	addresses []string
	stats     pool.HandlerStats
}

// NewMultipleAddresses joins m's current pool under cfg.Addresses fresh
// addresses drawn from src.
func NewMultipleAddresses(m *pool.Miner, cfg MultiAddressConfig, src *random.Source) (*MultipleAddresses, error) {
	if err := cfg.validate(MultipleAddressesKey); err != nil {
		return nil, err
	}
	if cfg.Addresses < 0 {
		return nil, errors.Config("new_behaviour", "addresses must not be negative, got %d", cfg.Addresses).
			WithContext("behaviour", MultipleAddressesKey)
	}
	if src == nil {
		return nil, errors.Config("new_behaviour", "multiple addresses need a random source")
	}

	h := &MultipleAddresses{
		cfg:       cfg,
		src:       src,
		addresses: make([]string, 0, cfg.Addresses),
	}
	for range cfg.Addresses {
		address := src.Address()
		m.Pool().Join(address)
		h.addresses = append(h.addresses, address)
	}
	return h, nil
}

// Addresses returns the extra addresses.
func (h *MultipleAddresses) Addresses() []string {
	return append([]string(nil), h.addresses...)
}

// HandleShare implements pool.ShareHandler.
func (h *MultipleAddresses) HandleShare(m *pool.Miner, share rewards.Share) {
	if _, ok := findVictim(m, h.cfg.BehaviourConfig); ok {
		if address, ok := random.Pick(h.src, h.addresses); ok {
			h.stats.SharesRouted++
			if share.IsValidBlock {
				h.stats.ValidSharesRouted++
			}
			m.Submit(address, share)
			return
		}
	}
	m.Submit(m.Address(), share)
}

// Stats implements pool.ShareHandler.
func (h *MultipleAddresses) Stats() pool.HandlerStats { return h.stats }

// PoolHopping leaves an unlucky queue-based pool for the luckiest pool of
// the network before submitting each share.
type PoolHopping struct {
	cfg   QBHoppingConfig
	stats pool.HandlerStats
}

// NewPoolHopping creates a pool hopping handler. BadLuckLimit must be
// positive.
func NewPoolHopping(cfg QBHoppingConfig) (*PoolHopping, error) {
	if err := cfg.validate(QBPoolHopping); err != nil {
		return nil, err
	}
	if cfg.BadLuckLimit <= 0 {
		return nil, errors.Config("new_behaviour", "bad_luck_limit must be positive, got %v", cfg.BadLuckLimit).
			WithContext("behaviour", QBPoolHopping)
	}
	return &PoolHopping{cfg: cfg}, nil
}

// HandleShare implements pool.ShareHandler.
func (h *PoolHopping) HandleShare(m *pool.Miner, share rewards.Share) {
	current := m.Pool()
	if _, ok := pool.SchemeAs[*rewards.QB](current); ok {
		luck := current.Luck()
		if luck < pool.NeutralLuck/h.cfg.BadLuckLimit {
			if best := luckiest(m.Network(), current, luck); best != current {
				m.JoinPool(best)
				h.stats.Hops++
			}
		}
	}
	m.Submit(m.Address(), share)
}

// Stats implements pool.ShareHandler.
func (h *PoolHopping) Stats() pool.HandlerStats { return h.stats }

// luckiest returns the pool with strictly greater luck than every other,
// current included. The first pool found wins among equals.
func luckiest(n *pool.Network, current *pool.Pool, luck float64) *pool.Pool {
	best, bestLuck := current, luck
	for _, p := range n.Pools() {
		if p == current {
			continue
		}
		if l := p.Luck(); l > bestLuck {
			best, bestLuck = p, l
		}
	}
	return best
}
