package pool

import (
	"fmt"
	"slices"

	"github.com/bardlex/poolsim/internal/rewards"
	"github.com/bardlex/poolsim/pkg/errors"
)

// Network owns every pool and miner of a simulation. Miners refer to
// their pool through it.
type Network struct {
	pools  []*Pool
	byName map[string]int
	miners []*Miner
	byAddr map[string]int
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{
		byName: make(map[string]int),
		byAddr: make(map[string]int),
	}
}

// AddPool creates a pool running scheme. Pool names are unique. A nil luck
// calculator makes the pool permanently neutral.
func (n *Network) AddPool(name string, scheme rewards.Scheme, luck LuckCalculator) (*Pool, error) {
	if name == "" {
		return nil, errors.Config("add_pool", "pool name must not be empty")
	}
	if _, exists := n.byName[name]; exists {
		return nil, errors.Config("add_pool", "duplicate pool %q", name)
	}
	if scheme == nil {
		return nil, errors.Config("add_pool", "pool %q has no reward scheme", name)
	}

	p := &Pool{
		id:        len(n.pools),
		name:      name,
		scheme:    scheme,
		luck:      luck,
		memberSet: make(map[string]struct{}),
	}
	n.pools = append(n.pools, p)
	n.byName[name] = p.id
	return p, nil
}

// Pool returns the pool called name.
func (n *Network) Pool(name string) (*Pool, bool) {
	i, ok := n.byName[name]
	if !ok {
		return nil, false
	}
	return n.pools[i], true
}

// Pools returns all pools in creation order.
func (n *Network) Pools() []*Pool {
	return slices.Clone(n.pools)
}

// AddMiner creates a miner and joins it to p.
func (n *Network) AddMiner(address string, hashrate float64, p *Pool) (*Miner, error) {
	if address == "" {
		return nil, errors.Config("add_miner", "miner address must not be empty")
	}
	if _, exists := n.byAddr[address]; exists {
		return nil, errors.Config("add_miner", "duplicate miner %q", address)
	}
	if hashrate <= 0 {
		return nil, errors.Config("add_miner", "miner %q needs a positive hashrate, got %v", address, hashrate)
	}
	if p == nil || p.id >= len(n.pools) || n.pools[p.id] != p {
		return nil, errors.Config("add_miner", "miner %q references a pool outside the network", address)
	}

	m := &Miner{
		address:  address,
		hashrate: hashrate,
		network:  n,
	}
	m.JoinPool(p)
	n.byAddr[address] = len(n.miners)
	n.miners = append(n.miners, m)
	return m, nil
}

// Miner returns the miner with the given primary address.
func (n *Network) Miner(address string) (*Miner, bool) {
	i, ok := n.byAddr[address]
	if !ok {
		return nil, false
	}
	return n.miners[i], true
}

// Miners returns all miners in creation order.
func (n *Network) Miners() []*Miner {
	return slices.Clone(n.miners)
}

func (n *Network) mustOwn(p *Pool) {
	if p == nil || p.id >= len(n.pools) || n.pools[p.id] != p {
		panic(fmt.Sprintf("pool: %v is not part of this network", p))
	}
}
