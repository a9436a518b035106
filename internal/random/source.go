// Package random provides the seeded random source that every stochastic
// part of a simulation draws from, so that a run is reproducible from its
// seed alone.
package random

import (
	"math/rand/v2"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bardlex/poolsim/pkg/errors"
)

// Source is a deterministic random source. It is not safe for concurrent
// use; a simulation owns exactly one.
type Source struct {
	rng    *rand.Rand
	params *chaincfg.Params
}

// New returns a source seeded with seed that generates addresses for the
// given chain parameters. Nil params means regtest.
func New(seed uint64, params *chaincfg.Params) *Source {
	if params == nil {
		params = &chaincfg.RegressionNetParams
	}
	return &Source{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		params: params,
	}
}

// ChainParams maps a chain name to its parameters.
func ChainParams(chain string) (*chaincfg.Params, error) {
	switch chain {
	case "", "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, errors.Config("chain_params", "unknown chain %q", chain)
	}
}

// Params returns the chain parameters used for addresses.
func (s *Source) Params() *chaincfg.Params {
	return s.params
}

// Float64 returns a number in [0,1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// IntN returns a number in [0,n). It panics if n <= 0.
func (s *Source) IntN(n int) int {
	return s.rng.IntN(n)
}

// Uint64 returns a uniformly distributed 64-bit value.
func (s *Source) Uint64() uint64 {
	return s.rng.Uint64()
}

// Pick returns a uniformly chosen element of items. The bool is false when
// items is empty.
func Pick[T any](s *Source, items []T) (T, bool) {
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	return items[s.IntN(len(items))], true
}

// Address returns a fresh pay-to-pubkey-hash address. The key material is
// random bytes, so the address is well formed but unspendable.
func (s *Source) Address() string {
	var key [33]byte
	key[0] = 0x02
	for i := 1; i < len(key); i += 8 {
		v := s.rng.Uint64()
		for j := 0; j < 8 && i+j < len(key); j++ {
			key[i+j] = byte(v >> (8 * j))
		}
	}

	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(key[:]), s.params)
	if err != nil {
		// Hash160 always yields 20 bytes
		panic(err)
	}
	return addr.EncodeAddress()
}
