package pool

import "gonum.org/v1/gonum/stat"

// NeutralLuck is the luck of a pool finding blocks exactly as expected.
const NeutralLuck = 100.0

// LuckCalculator derives a pool's luck from its round history. rounds are
// completed round lengths, oldest first; open is the length of the round
// in progress.
type LuckCalculator interface {
	Luck(rounds []uint64, open uint64) float64
}

// LuckFunc adapts a function to LuckCalculator.
type LuckFunc func(rounds []uint64, open uint64) float64

// Luck implements LuckCalculator.
func (f LuckFunc) Luck(rounds []uint64, open uint64) float64 { return f(rounds, open) }

// FixedLuck always reports the same luck.
type FixedLuck float64

// Luck implements LuckCalculator.
func (l FixedLuck) Luck([]uint64, uint64) float64 { return float64(l) }

// RoundLuck compares the expected round length with the mean length of
// the last Window rounds: 100 * ExpectedShares / mean. An open round that
// already runs longer than that mean counts as a sample, so a dry spell
// lowers luck before the block arrives.
type RoundLuck struct {
	ExpectedShares float64
	Window         int
}

// Luck implements LuckCalculator.
func (r RoundLuck) Luck(rounds []uint64, open uint64) float64 {
	if r.ExpectedShares <= 0 {
		return NeutralLuck
	}
	if r.Window > 0 && len(rounds) > r.Window {
		rounds = rounds[len(rounds)-r.Window:]
	}

	samples := make([]float64, 0, len(rounds)+1)
	for _, n := range rounds {
		samples = append(samples, float64(n))
	}

	bar := r.ExpectedShares
	if len(samples) > 0 {
		bar = stat.Mean(samples, nil)
	}
	if float64(open) > bar {
		samples = append(samples, float64(open))
	}
	if len(samples) == 0 {
		return NeutralLuck
	}

	mean := stat.Mean(samples, nil)
	if mean <= 0 {
		return NeutralLuck
	}
	return NeutralLuck * r.ExpectedShares / mean
}
