// Package pool holds the simulation substrate: miners, the pools they mine
// for, and the network that owns both.
package pool

import (
	"slices"

	"github.com/bardlex/poolsim/internal/rewards"
)

// maxRoundHistory bounds the completed round lengths a pool keeps.
const maxRoundHistory = 4096

// BlockObserver is called synchronously after the pool's scheme handled a
// valid block.
type BlockObserver func(p *Pool, report rewards.BlockReport)

// Pool is a mining pool. It owns exactly one reward scheme and the set of
// addresses that joined it.
type Pool struct {
	id        int
	name      string
	scheme    rewards.Scheme
	luck      LuckCalculator
	members   []string
	memberSet map[string]struct{}
	observers []BlockObserver

	// shares since the last block, and lengths of the completed rounds
	open   uint64
	rounds []uint64
}

// Name returns the unique pool name.
func (p *Pool) Name() string { return p.name }

// Scheme returns the reward scheme of the pool.
func (p *Pool) Scheme() rewards.Scheme { return p.scheme }

// SchemeAs returns the pool's scheme as S. The bool is false when the pool
// runs a different scheme type.
func SchemeAs[S rewards.Scheme](p *Pool) (S, bool) {
	s, ok := p.scheme.(S)
	return s, ok
}

// SubmitShare hands a share credited to address to the reward scheme.
func (p *Pool) SubmitShare(address string, share rewards.Share) {
	p.scheme.HandleShare(address, share)

	p.open++
	if !share.IsValidBlock {
		return
	}
	p.rounds = append(p.rounds, p.open)
	if len(p.rounds) > maxRoundHistory {
		p.rounds = slices.Delete(p.rounds, 0, len(p.rounds)-maxRoundHistory)
	}
	p.open = 0

	report := p.scheme.BlockMetadata()
	for _, observe := range p.observers {
		observe(p, report)
	}
}

// Join adds address to the pool. It reports whether the address was new.
func (p *Pool) Join(address string) bool {
	if _, ok := p.memberSet[address]; ok {
		return false
	}
	p.memberSet[address] = struct{}{}
	p.members = append(p.members, address)
	return true
}

// HasMember reports whether address joined the pool.
func (p *Pool) HasMember(address string) bool {
	_, ok := p.memberSet[address]
	return ok
}

// Members returns the joined addresses in join order.
func (p *Pool) Members() []string {
	return slices.Clone(p.members)
}

// OnBlock registers an observer for found blocks.
func (p *Pool) OnBlock(fn BlockObserver) {
	p.observers = append(p.observers, fn)
}

// Luck returns the pool's luck; 100 is neutral and lower is unluckier.
func (p *Pool) Luck() float64 {
	if p.luck == nil {
		return NeutralLuck
	}
	return p.luck.Luck(p.rounds, p.open)
}

// Rounds returns the completed round lengths, oldest first.
func (p *Pool) Rounds() []uint64 {
	return slices.Clone(p.rounds)
}

// OpenRound returns the number of shares since the last block.
func (p *Pool) OpenRound() uint64 { return p.open }
