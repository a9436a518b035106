package pool

import "github.com/bardlex/poolsim/internal/rewards"

// HandlerStats counts what a share handler did with the shares it saw.
type HandlerStats struct {
	SharesWithheld      uint64 `json:"shares_withheld"`
	ValidSharesWithheld uint64 `json:"valid_shares_withheld"`
	SharesDonated       uint64 `json:"shares_donated"`
	ValidSharesDonated  uint64 `json:"valid_shares_donated"`
	SharesRouted        uint64 `json:"shares_routed"`
	ValidSharesRouted   uint64 `json:"valid_shares_routed"`
	Hops                uint64 `json:"hops"`
}

// ShareHandler decides where each share mined by a miner ends up. The
// miner is passed on every call; handlers keep no reference to it.
type ShareHandler interface {
	HandleShare(m *Miner, share rewards.Share)
	Stats() HandlerStats
}

// Miner is an identity with hashrate, bound to one pool at a time.
type Miner struct {
	address  string
	hashrate float64
	pool     int
	network  *Network
	handler  ShareHandler
}

// Address returns the primary address of the miner.
func (m *Miner) Address() string { return m.address }

// Hashrate returns the relative hashrate of the miner.
func (m *Miner) Hashrate() float64 { return m.hashrate }

// Network returns the network the miner belongs to.
func (m *Miner) Network() *Network { return m.network }

// Pool returns the pool the miner currently mines for.
func (m *Miner) Pool() *Pool { return m.network.pools[m.pool] }

// JoinPool moves the miner to p. Shares already submitted stay where they
// were; p sees only future shares.
func (m *Miner) JoinPool(p *Pool) {
	m.network.mustOwn(p)
	m.pool = p.id
	p.Join(m.address)
}

// Handler returns the miner's share handler, nil when unset.
func (m *Miner) Handler() ShareHandler { return m.handler }

// SetHandler replaces the miner's share handler.
func (m *Miner) SetHandler(h ShareHandler) { m.handler = h }

// Mine passes a freshly mined share to the handler. Without a handler the
// share goes to the current pool under the miner's own address.
func (m *Miner) Mine(share rewards.Share) {
	if m.handler == nil {
		m.Submit(m.address, share)
		return
	}
	m.handler.HandleShare(m, share)
}

// Submit sends share to the current pool credited to address.
func (m *Miner) Submit(address string, share rewards.Share) {
	m.Pool().SubmitShare(address, share)
}

// Stats returns the handler statistics of the miner.
func (m *Miner) Stats() HandlerStats {
	if m.handler == nil {
		return HandlerStats{}
	}
	return m.handler.Stats()
}
