// Package simulator drives an experiment: it builds the network of pools
// and miners, feeds it a seeded stream of shares one at a time and hands
// every found block and the final result to a Recorder.
package simulator

import (
	"context"
	"encoding/binary"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/time/rate"

	"github.com/bardlex/poolsim/internal/behaviour"
	"github.com/bardlex/poolsim/internal/config"
	"github.com/bardlex/poolsim/internal/pool"
	"github.com/bardlex/poolsim/internal/random"
	"github.com/bardlex/poolsim/internal/rewards"
	"github.com/bardlex/poolsim/pkg/errors"
	"github.com/bardlex/poolsim/pkg/log"
)

// Simulator runs one experiment. It is single-threaded: a share is fully
// processed, including any migration and block export, before the next.
type Simulator struct {
	exp      *config.Experiment
	logger   *log.Logger
	recorder Recorder
	src      *random.Source
	network  *pool.Network

	miners     []*pool.Miner
	behaviours []string
	cumulative []float64

	limiter       *rate.Limiter
	progressEvery uint64
	now           func() time.Time

	seq     uint64
	blocks  uint64
	pending []BlockEvent
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLimiter paces the run to the limiter's share rate.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Simulator) { s.limiter = l }
}

// WithProgressEvery logs progress every n shares; zero disables it.
func WithProgressEvery(n uint64) Option {
	return func(s *Simulator) { s.progressEvery = n }
}

// WithClock sets the time source of event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// New builds the network described by exp. Invalid pools, schemes or
// behaviours are configuration errors.
func New(exp *config.Experiment, logger *log.Logger, recorder Recorder, opts ...Option) (*Simulator, error) {
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	params, err := random.ChainParams(exp.Chain)
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = Discard{}
	}

	s := &Simulator{
		exp:      exp,
		logger:   logger.WithComponent("simulator").WithExperiment(exp.ID, exp.Seed),
		recorder: recorder,
		src:      random.New(exp.Seed, params),
		network:  pool.NewNetwork(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.buildPools(); err != nil {
		return nil, err
	}
	if err := s.buildMiners(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) buildPools() error {
	for _, spec := range s.exp.Pools {
		scheme, err := rewards.New(spec.RewardScheme, spec.Args)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "build_pool", "invalid reward scheme").
				WithContext("pool", spec.Name)
		}
		luck := pool.RoundLuck{
			ExpectedShares: float64(s.exp.SharesPerBlock),
			Window:         spec.LuckWindow,
		}
		p, err := s.network.AddPool(spec.Name, scheme, luck)
		if err != nil {
			return err
		}
		p.OnBlock(s.observeBlock)
		s.logger.WithPool(spec.Name, scheme.Name()).Debug("pool added", "luck_window", spec.LuckWindow)
	}
	return nil
}

func (s *Simulator) buildMiners() error {
	var total float64
	for _, spec := range s.exp.Miners {
		p, _ := s.network.Pool(spec.Pool)
		name := spec.Behaviour
		if name == "" {
			name = behaviour.DefaultKey
		}

		for _, address := range spec.Addresses() {
			if address == "" {
				address = s.src.Address()
			}
			m, err := s.network.AddMiner(address, spec.Hashrate, p)
			if err != nil {
				return err
			}
			h, err := behaviour.New(name, m, spec.Args, s.src)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, "build_miner", "invalid behaviour").
					WithContext("miner", address).
					WithContext("behaviour", name)
			}
			m.SetHandler(h)

			total += spec.Hashrate
			s.miners = append(s.miners, m)
			s.behaviours = append(s.behaviours, name)
			s.cumulative = append(s.cumulative, total)
			s.logger.WithMiner(address, name).Debug("miner added", "pool", p.Name(), "hashrate", spec.Hashrate)
		}
	}
	return nil
}

// Network returns the simulated network.
func (s *Simulator) Network() *pool.Network { return s.network }

// Processed returns the number of shares mined so far.
func (s *Simulator) Processed() uint64 { return s.seq }

// Step mines one share: it picks a miner weighted by hashrate, lets its
// handler route the share and exports the blocks this produced.
func (s *Simulator) Step(ctx context.Context) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeSimulation, "step", "share pacing interrupted")
		}
	}

	s.seq++
	m := s.pickMiner()
	share := rewards.Share{IsValidBlock: s.src.Float64() < 1/float64(s.exp.SharesPerBlock)}

	before := m.Pool()
	m.Mine(share)
	if after := m.Pool(); after != before {
		s.logger.LogMigration(m.Address(), before.Name(), after.Name(), s.seq)
	}

	s.flush(ctx)

	if s.progressEvery > 0 && s.seq%s.progressEvery == 0 {
		s.logger.LogProgress(s.seq, s.exp.Shares, s.blocks)
	}
	return nil
}

// Run mines every share of the experiment and records the result. On
// cancellation it returns the partial result with the context error.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	s.logger.Info("experiment started",
		"shares", s.exp.Shares,
		"shares_per_block", s.exp.SharesPerBlock,
		"pools", len(s.exp.Pools),
		"miners", len(s.miners),
	)

	for s.seq < s.exp.Shares {
		if err := ctx.Err(); err != nil {
			return s.Result(), errors.Wrap(err, errors.ErrorTypeSimulation, "run", "experiment interrupted").
				WithContext("processed", s.seq)
		}
		if err := s.Step(ctx); err != nil {
			return s.Result(), err
		}
	}

	result := s.Result()
	result.Elapsed = time.Since(start)
	if err := s.recorder.RecordResult(ctx, result); err != nil {
		s.logger.LogExportFailure(s.recorder.Name(), "record_result", err)
	}

	s.logger.LogRunSummary(result.Shares, result.Blocks, result.Elapsed)
	return result, nil
}

// Result snapshots the current state of every pool and miner.
func (s *Simulator) Result() *Result {
	r := &Result{
		ExperimentID: s.exp.ID,
		Seed:         s.exp.Seed,
		Shares:       s.seq,
		Blocks:       s.blocks,
		FinishedAt:   s.now(),
	}

	for _, p := range s.network.Pools() {
		r.Pools = append(r.Pools, PoolResult{
			Name:         p.Name(),
			RewardScheme: p.Scheme().Name(),
			Blocks:       p.Scheme().Blocks(),
			Luck:         p.Luck(),
			Members:      len(p.Members()),
			LastBlock:    p.Scheme().BlockMetadata(),
			Records:      p.Scheme().Records(),
		})
	}
	for i, m := range s.miners {
		r.Miners = append(r.Miners, MinerResult{
			Address:   m.Address(),
			Hashrate:  m.Hashrate(),
			Behaviour: s.behaviours[i],
			Pool:      m.Pool().Name(),
			Stats:     m.Stats(),
		})
	}
	return r
}

func (s *Simulator) pickMiner() *pool.Miner {
	total := s.cumulative[len(s.cumulative)-1]
	x := s.src.Float64() * total
	i := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > x })
	return s.miners[min(i, len(s.miners)-1)]
}

// observeBlock queues a block event; Step flushes the queue once the
// share is fully handled.
func (s *Simulator) observeBlock(p *pool.Pool, report rewards.BlockReport) {
	s.blocks++
	meta := report.Block()
	s.logger.WithPool(p.Name(), meta.RewardScheme).LogBlockFound(meta.MinerAddress, meta.SharesPerBlock, s.seq)

	s.pending = append(s.pending, BlockEvent{
		ID:           s.eventID(p.Name()),
		ExperimentID: s.exp.ID,
		Sequence:     s.seq,
		Pool:         p.Name(),
		Metadata:     report,
		FoundAt:      s.now(),
	})
}

func (s *Simulator) flush(ctx context.Context) {
	for _, event := range s.pending {
		if err := s.recorder.RecordBlock(ctx, event); err != nil {
			s.logger.LogExportFailure(s.recorder.Name(), "record_block", err)
		}
	}
	s.pending = s.pending[:0]
}

// eventID derives a stable identifier from the seed, the share sequence
// and the pool.
func (s *Simulator) eventID(poolName string) string {
	buf := make([]byte, 16, 16+len(poolName))
	binary.BigEndian.PutUint64(buf[:8], s.exp.Seed)
	binary.BigEndian.PutUint64(buf[8:], s.seq)
	buf = append(buf, poolName...)
	return chainhash.DoubleHashH(buf).String()
}
