package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bardlex/poolsim/internal/random"
	"github.com/bardlex/poolsim/pkg/errors"
)

// Experiment describes one simulation run.
type Experiment struct {
	ID             string      `json:"id"`
	Seed           uint64      `json:"seed"`
	Shares         uint64      `json:"shares"`
	SharesPerBlock uint64      `json:"shares_per_block"`
	Chain          string      `json:"chain"`
	Pools          []PoolSpec  `json:"pools"`
	Miners         []MinerSpec `json:"miners"`
}

// PoolSpec declares a pool and its reward scheme.
type PoolSpec struct {
	Name         string          `json:"name"`
	RewardScheme string          `json:"reward_scheme"`
	Args         json.RawMessage `json:"args,omitempty"`
	// LuckWindow is the number of recent rounds luck is computed over,
	// zero for all.
	LuckWindow int `json:"luck_window"`
}

// MinerSpec declares Count miners with the same behaviour. An empty
// address is generated; with Count > 1 every miner gets a "-i" suffix.
type MinerSpec struct {
	Address   string          `json:"address"`
	Hashrate  float64         `json:"hashrate"`
	Pool      string          `json:"pool"`
	Behaviour string          `json:"behaviour"`
	Args      json.RawMessage `json:"args,omitempty"`
	Count     int             `json:"count"`
}

// Addresses expands the entry into one address per miner. Empty strings
// stand for generated addresses.
func (m MinerSpec) Addresses() []string {
	count := max(m.Count, 1)
	if m.Address == "" {
		return make([]string, count)
	}
	if count == 1 {
		return []string{m.Address}
	}
	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", m.Address, i)
	}
	return out
}

// LoadExperiment reads and validates an experiment file. A missing id is
// taken from the file name.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load_experiment", "failed to read experiment file").
			WithContext("path", path)
	}

	exp, err := ParseExperiment(data)
	if err != nil {
		return nil, err
	}
	if exp.ID == "" {
		exp.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return exp, exp.Validate()
}

// ParseExperiment decodes an experiment without validating it.
func ParseExperiment(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "parse_experiment", "invalid experiment JSON")
	}
	return &exp, nil
}

// Validate reports the first structural problem of the experiment. Scheme
// and behaviour arguments are checked when the network is built.
func (e *Experiment) Validate() error {
	if e.ID == "" {
		return errors.Config("validate_experiment", "id cannot be empty")
	}
	if e.Shares == 0 {
		return errors.Config("validate_experiment", "shares must be positive")
	}
	if e.SharesPerBlock == 0 {
		return errors.Config("validate_experiment", "shares_per_block must be positive")
	}
	if _, err := random.ChainParams(e.Chain); err != nil {
		return err
	}
	if len(e.Pools) == 0 {
		return errors.Config("validate_experiment", "at least one pool is required")
	}
	if len(e.Miners) == 0 {
		return errors.Config("validate_experiment", "at least one miner is required")
	}

	pools := make(map[string]bool, len(e.Pools))
	for i, p := range e.Pools {
		if p.Name == "" {
			return errors.Config("validate_experiment", "pool %d has no name", i)
		}
		if pools[p.Name] {
			return errors.Config("validate_experiment", "duplicate pool %q", p.Name)
		}
		if p.RewardScheme == "" {
			return errors.Config("validate_experiment", "pool %q has no reward_scheme", p.Name)
		}
		if p.LuckWindow < 0 {
			return errors.Config("validate_experiment", "pool %q has a negative luck_window", p.Name)
		}
		pools[p.Name] = true
	}

	addresses := make(map[string]bool)
	for i, m := range e.Miners {
		if !pools[m.Pool] {
			return errors.Config("validate_experiment", "miner %d references unknown pool %q", i, m.Pool)
		}
		if m.Hashrate <= 0 {
			return errors.Config("validate_experiment", "miner %d needs a positive hashrate", i)
		}
		if m.Count < 0 {
			return errors.Config("validate_experiment", "miner %d has a negative count", i)
		}
		for _, address := range m.Addresses() {
			if address == "" {
				continue
			}
			if addresses[address] {
				return errors.Config("validate_experiment", "duplicate miner address %q", address)
			}
			addresses[address] = true
		}
	}

	return nil
}

// TotalMiners returns the number of miners after expanding counts.
func (e *Experiment) TotalMiners() int {
	var n int
	for _, m := range e.Miners {
		n += max(m.Count, 1)
	}
	return n
}
