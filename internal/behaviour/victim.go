package behaviour

import (
	"github.com/bardlex/poolsim/internal/pool"
	"github.com/bardlex/poolsim/internal/rewards"
)

// victim scans ranked from the top for self and returns the address ranked
// right below it when own*threshold <= victim credits. Scanning stops
// once the index passes topN; a missing next rank means no victim.
func victim(ranked []rewards.QBRecord, self string, topN int, threshold float64) (string, bool) {
	for i, rec := range ranked {
		if i > topN {
			return "", false
		}
		if rec.Address != self {
			continue
		}
		if i+1 >= len(ranked) {
			return "", false
		}
		next := ranked[i+1]
		if rec.Credits*threshold <= next.Credits {
			return next.Address, true
		}
		return "", false
	}
	return "", false
}

// findVictim looks for a victim of m in its current pool. Pools that do not
// run the queue-based scheme never have one.
func findVictim(m *pool.Miner, cfg BehaviourConfig) (string, bool) {
	qb, ok := pool.SchemeAs[*rewards.QB](m.Pool())
	if !ok {
		return "", false
	}
	return victim(qb.Ranked(), m.Address(), cfg.TopN, cfg.Threshold)
}
