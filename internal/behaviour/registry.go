package behaviour

import (
	"encoding/json"

	"github.com/bardlex/poolsim/internal/pool"
	"github.com/bardlex/poolsim/internal/random"
	"github.com/bardlex/poolsim/internal/registry"
)

// Registry keys of the built-in behaviours.
const (
	DefaultKey           = "default"
	ShareWithholding     = "share_withholding"
	QBShareWithholding   = "qb_share_withholding"
	ShareDonation        = "share_donation"
	MultipleAddressesKey = "multiple_addresses"
	QBPoolHopping        = "qb_pool_hopping"
)

// Constructor builds the handler of m from its JSON arguments. src is the
// simulation's random source.
type Constructor func(m *pool.Miner, args json.RawMessage, src *random.Source) (pool.ShareHandler, error)

var behaviours = registry.New[Constructor]("behaviour")

func init() {
	behaviours.Register(DefaultKey, func(*pool.Miner, json.RawMessage, *random.Source) (pool.ShareHandler, error) {
		return Default{}, nil
	})
	behaviours.Register(ShareWithholding, func(*pool.Miner, json.RawMessage, *random.Source) (pool.ShareHandler, error) {
		return &Withholding{}, nil
	})
	behaviours.Register(QBShareWithholding, func(_ *pool.Miner, args json.RawMessage, _ *random.Source) (pool.ShareHandler, error) {
		var cfg BehaviourConfig
		if err := decodeArgs(QBShareWithholding, args, &cfg); err != nil {
			return nil, err
		}
		return NewQBWithholding(cfg)
	})
	behaviours.Register(ShareDonation, func(_ *pool.Miner, args json.RawMessage, _ *random.Source) (pool.ShareHandler, error) {
		var cfg BehaviourConfig
		if err := decodeArgs(ShareDonation, args, &cfg); err != nil {
			return nil, err
		}
		return NewDonation(cfg)
	})
	behaviours.Register(MultipleAddressesKey, func(m *pool.Miner, args json.RawMessage, src *random.Source) (pool.ShareHandler, error) {
		var cfg MultiAddressConfig
		if err := decodeArgs(MultipleAddressesKey, args, &cfg); err != nil {
			return nil, err
		}
		return NewMultipleAddresses(m, cfg, src)
	})
	behaviours.Register(QBPoolHopping, func(_ *pool.Miner, args json.RawMessage, _ *random.Source) (pool.ShareHandler, error) {
		var cfg QBHoppingConfig
		if err := decodeArgs(QBPoolHopping, args, &cfg); err != nil {
			return nil, err
		}
		return NewPoolHopping(cfg)
	})
}

// Register makes a behaviour available under name.
func Register(name string, ctor Constructor) {
	behaviours.Register(name, ctor)
}

// New builds the behaviour registered under name for m. An empty name
// means the default behaviour.
func New(name string, m *pool.Miner, args json.RawMessage, src *random.Source) (pool.ShareHandler, error) {
	if name == "" {
		name = DefaultKey
	}
	ctor, err := behaviours.Lookup(name)
	if err != nil {
		return nil, err
	}
	return ctor(m, args, src)
}

// Names lists the registered behaviours.
func Names() []string {
	return behaviours.Names()
}
