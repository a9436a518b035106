// Package behaviour implements the share handlers that decide, share by
// share, where a miner's work is credited: honest submission, block
// withholding, donation to a rival, spreading over pseudonyms and
// hopping between pools.
package behaviour

import (
	"encoding/json"

	"github.com/bardlex/poolsim/pkg/errors"
)

// BehaviourConfig selects the victim of the queue-based attacks. A victim
// exists when the miner ranks within the first TopN+1 balances and the
// balance right below it is at least Threshold times its own.
type BehaviourConfig struct {
	TopN      int     `json:"top_n"`
	Threshold float64 `json:"threshold"`
}

func (c BehaviourConfig) validate(behaviour string) error {
	if c.TopN < 0 {
		return errors.Config("new_behaviour", "top_n must not be negative, got %d", c.TopN).
			WithContext("behaviour", behaviour)
	}
	if c.Threshold < 0 {
		return errors.Config("new_behaviour", "threshold must not be negative, got %v", c.Threshold).
			WithContext("behaviour", behaviour)
	}
	return nil
}

// MultiAddressConfig adds the number of extra addresses to join with.
type MultiAddressConfig struct {
	BehaviourConfig
	Addresses int `json:"addresses"`
}

// QBHoppingConfig adds the luck limit below which the miner leaves. The
// miner hops when luck < 100/BadLuckLimit.
type QBHoppingConfig struct {
	BehaviourConfig
	BadLuckLimit float64 `json:"bad_luck_limit"`
}

func decodeArgs(behaviour string, args json.RawMessage, cfg any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "decode_args",
			"invalid behaviour arguments").
			WithContext("behaviour", behaviour)
	}
	return nil
}
