package behaviour

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/bardlex/poolsim/internal/pool"
	"github.com/bardlex/poolsim/internal/random"
	"github.com/bardlex/poolsim/internal/rewards"
	"github.com/bardlex/poolsim/pkg/errors"
)

var (
	share = rewards.Share{}
	block = rewards.Share{IsValidBlock: true}
)

// setup returns a network with one pool running scheme and the miner
// "attacker" in it.
func setup(t *testing.T, scheme string) (*pool.Network, *pool.Pool, *pool.Miner) {
	t.Helper()
	s, err := rewards.New(scheme, json.RawMessage(`{"n": 10}`))
	if err != nil {
		t.Fatal(err)
	}
	n := pool.NewNetwork()
	p, err := n.AddPool("p", s, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, err := n.AddMiner("attacker", 1, p)
	if err != nil {
		t.Fatal(err)
	}
	return n, p, m
}

func credit(p *pool.Pool, address string, n int) {
	for range n {
		p.SubmitShare(address, share)
	}
}

func shares(t *testing.T, p *pool.Pool, address string) uint64 {
	t.Helper()
	rep, _ := p.Scheme().MinerMetadata(address)
	return rep.Record().SharesCount
}

func TestVictim(t *testing.T) {
	ranked := func(credits ...float64) []rewards.QBRecord {
		out := make([]rewards.QBRecord, len(credits))
		for i, c := range credits {
			out[i].Address = string(rune('a' + i))
			out[i].Credits = c
		}
		return out
	}

	tests := []struct {
		name      string
		ranked    []rewards.QBRecord
		self      string
		topN      int
		threshold float64
		want      string
		wantOK    bool
	}{
		{"inclusive boundary holds", ranked(100, 95), "a", 0, 0.9, "b", true},
		{"boundary fails", ranked(100, 95), "a", 0, 1.0, "", false},
		{"equal credits at threshold one", ranked(100, 100), "a", 0, 1.0, "b", true},
		{"self ranked last", ranked(100, 95), "b", 5, 0.1, "", false},
		{"single record", ranked(100), "a", 5, 0.1, "", false},
		{"beyond top n", ranked(100, 99, 98, 97), "c", 1, 0.1, "", false},
		{"at top n", ranked(100, 99, 98, 97), "c", 2, 0.1, "d", true},
		{"self absent", ranked(100, 99), "z", 5, 0.1, "", false},
		{"empty ranking", nil, "a", 5, 0.1, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := victim(tt.ranked, tt.self, tt.topN, tt.threshold)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("victim() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestWithholding_DropsOnlyBlocks(t *testing.T) {
	const k, m = 3, 7

	_, p, miner := setup(t, rewards.SchemePPS)
	h := &Withholding{}
	miner.SetHandler(h)

	for range k {
		miner.Mine(block)
	}
	for range m {
		miner.Mine(share)
	}

	stats := h.Stats()
	if stats.ValidSharesWithheld != k || stats.SharesWithheld != k {
		t.Errorf("Stats() = %+v, want %d withheld", stats, k)
	}
	if got := shares(t, p, "attacker"); got != m {
		t.Errorf("forwarded shares = %d, want %d", got, m)
	}
	if p.Scheme().Blocks() != 0 {
		t.Errorf("Blocks() = %d, want 0", p.Scheme().Blocks())
	}
}

func TestQBWithholding(t *testing.T) {
	tests := []struct {
		name         string
		scheme       string
		threshold    float64
		wantWithheld bool
	}{
		{"victim close enough", rewards.SchemeQB, 0.9, true},
		{"victim too far", rewards.SchemeQB, 1.0, false},
		{"not a queue pool", rewards.SchemePPLNS, 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p, miner := setup(t, tt.scheme)
			credit(p, "attacker", 100)
			credit(p, "victim", 95)

			h, err := NewQBWithholding(BehaviourConfig{TopN: 0, Threshold: tt.threshold})
			if err != nil {
				t.Fatal(err)
			}
			miner.SetHandler(h)
			miner.Mine(block)

			withheld := h.Stats().ValidSharesWithheld == 1
			if withheld != tt.wantWithheld {
				t.Errorf("withheld = %v, want %v", withheld, tt.wantWithheld)
			}
			want := uint64(101)
			if tt.wantWithheld {
				want = 100
			}
			if got := shares(t, p, "attacker"); got != want {
				t.Errorf("attacker shares = %d, want %d", got, want)
			}
		})
	}
}

func TestDonation_CreditsVictim(t *testing.T) {
	_, p, miner := setup(t, rewards.SchemeQB)
	credit(p, "attacker", 100)
	credit(p, "victim", 95)

	h, err := NewDonation(BehaviourConfig{Threshold: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	miner.SetHandler(h)
	miner.Mine(share)

	qb, _ := pool.SchemeAs[*rewards.QB](p)
	if got := qb.Credits("victim"); got != 96 {
		t.Errorf("Credits(victim) = %v, want 96", got)
	}
	if got := qb.Credits("attacker"); got != 100 {
		t.Errorf("Credits(attacker) = %v, want 100", got)
	}
	if h.Stats().SharesDonated != 1 {
		t.Errorf("SharesDonated = %d, want 1", h.Stats().SharesDonated)
	}

	// without a victim the share stays with the miner
	credit(p, "attacker", 50)
	miner.Mine(share)
	if got := qb.Credits("attacker"); got != 151 {
		t.Errorf("Credits(attacker) = %v, want 151", got)
	}
}

func TestMultipleAddresses(t *testing.T) {
	_, p, miner := setup(t, rewards.SchemeQB)
	src := random.New(3, nil)

	h, err := NewMultipleAddresses(miner, MultiAddressConfig{
		BehaviourConfig: BehaviourConfig{TopN: 10, Threshold: 0},
		Addresses:       3,
	}, src)
	if err != nil {
		t.Fatal(err)
	}
	miner.SetHandler(h)

	if got := len(p.Members()); got != 4 {
		t.Fatalf("len(Members()) = %d, want 4 (primary + 3)", got)
	}
	extras := h.Addresses()
	for _, address := range extras {
		if !p.HasMember(address) {
			t.Errorf("extra address %s did not join", address)
		}
	}

	// the victim always ranks right below the attacker's fixed balance
	credit(p, "attacker", 10)
	credit(p, "victim", 9)
	for range 30 {
		miner.Mine(share)
	}

	if h.Stats().SharesRouted != 30 {
		t.Errorf("SharesRouted = %d, want 30", h.Stats().SharesRouted)
	}
	var routed uint64
	for _, address := range extras {
		routed += shares(t, p, address)
	}
	if routed != 30 {
		t.Errorf("shares under extra addresses = %d, want 30", routed)
	}
	if h.Stats().ValidSharesRouted != 0 {
		t.Errorf("ValidSharesRouted = %d, want 0", h.Stats().ValidSharesRouted)
	}

	miner.Mine(block)
	if stats := h.Stats(); stats.SharesRouted != 31 || stats.ValidSharesRouted != 1 {
		t.Errorf("Stats() = %+v, want 31 routed, 1 valid", stats)
	}
	if got := shares(t, p, "attacker"); got != 10 {
		t.Errorf("attacker shares = %d, want 10", got)
	}
}

func TestVictimHandlers_OutsideQueuePools(t *testing.T) {
	handlers := []struct {
		name string
		new  func(t *testing.T, m *pool.Miner) pool.ShareHandler
	}{
		{
			name: ShareDonation,
			new: func(t *testing.T, _ *pool.Miner) pool.ShareHandler {
				h, err := NewDonation(BehaviourConfig{TopN: 10, Threshold: 0})
				if err != nil {
					t.Fatal(err)
				}
				return h
			},
		},
		{
			name: MultipleAddressesKey,
			new: func(t *testing.T, m *pool.Miner) pool.ShareHandler {
				h, err := NewMultipleAddresses(m, MultiAddressConfig{
					BehaviourConfig: BehaviourConfig{TopN: 10, Threshold: 0},
					Addresses:       3,
				}, random.New(5, nil))
				if err != nil {
					t.Fatal(err)
				}
				return h
			},
		},
	}

	for _, scheme := range []string{rewards.SchemePPS, rewards.SchemePPLNS} {
		for _, hh := range handlers {
			t.Run(scheme+"/"+hh.name, func(t *testing.T) {
				_, p, miner := setup(t, scheme)
				credit(p, "attacker", 100)
				credit(p, "victim", 95)

				h := hh.new(t, miner)
				miner.SetHandler(h)
				miner.Mine(share)
				miner.Mine(block)

				if got := shares(t, p, "attacker"); got != 102 {
					t.Errorf("attacker shares = %d, want 102", got)
				}
				if got := shares(t, p, "victim"); got != 95 {
					t.Errorf("victim shares = %d, want 95", got)
				}
				if stats := h.Stats(); stats != (pool.HandlerStats{}) {
					t.Errorf("Stats() = %+v, want zero", stats)
				}
				if ma, ok := h.(*MultipleAddresses); ok {
					for _, address := range ma.Addresses() {
						if got := shares(t, p, address); got != 0 {
							t.Errorf("shares under %s = %d, want 0", address, got)
						}
					}
				}
			})
		}
	}
}

func TestPoolHopping(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		luck     map[string]float64
		wantPool string
		wantHops uint64
	}{
		{
			name:     "migrates to luckiest",
			current:  "qb",
			luck:     map[string]float64{"qb": 1, "pps": 50, "qb2": 80},
			wantPool: "qb2",
			wantHops: 1,
		},
		{
			name:     "stays when already luckiest",
			current:  "qb",
			luck:     map[string]float64{"qb": 1, "pps": 0.5, "qb2": 0.2},
			wantPool: "qb",
		},
		{
			name:     "stays on ties",
			current:  "qb",
			luck:     map[string]float64{"qb": 1, "pps": 1, "qb2": 1},
			wantPool: "qb",
		},
		{
			name:     "stays when luck is good enough",
			current:  "qb",
			luck:     map[string]float64{"qb": 2, "pps": 50, "qb2": 80},
			wantPool: "qb",
		},
		{
			name:     "never hops out of a non-queue pool",
			current:  "pps",
			luck:     map[string]float64{"qb": 90, "pps": 1, "qb2": 80},
			wantPool: "pps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := pool.NewNetwork()
			for _, name := range []string{"qb", "pps", "qb2"} {
				scheme := rewards.SchemeQB
				if name == "pps" {
					scheme = rewards.SchemePPS
				}
				s, err := rewards.New(scheme, nil)
				if err != nil {
					t.Fatal(err)
				}
				if _, err := n.AddPool(name, s, pool.FixedLuck(tt.luck[name])); err != nil {
					t.Fatal(err)
				}
			}
			start, _ := n.Pool(tt.current)
			miner, _ := n.AddMiner("hopper", 1, start)

			h, err := NewPoolHopping(QBHoppingConfig{BadLuckLimit: 50})
			if err != nil {
				t.Fatal(err)
			}
			miner.SetHandler(h)
			miner.Mine(share)

			if got := miner.Pool().Name(); got != tt.wantPool {
				t.Errorf("Pool() = %s, want %s", got, tt.wantPool)
			}
			if h.Stats().Hops != tt.wantHops {
				t.Errorf("Hops = %d, want %d", h.Stats().Hops, tt.wantHops)
			}
			if got := shares(t, miner.Pool(), "hopper"); got != 1 {
				t.Errorf("shares in %s = %d, want 1", miner.Pool().Name(), got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		behaviour string
		args      string
		wantErr   bool
	}{
		{"empty means default", "", ``, false},
		{"default", DefaultKey, ``, false},
		{"withholding", ShareWithholding, `{"ignored": true}`, false},
		{"qb withholding", QBShareWithholding, `{"top_n": 2, "threshold": 0.9}`, false},
		{"negative top n", QBShareWithholding, `{"top_n": -1}`, true},
		{"donation", ShareDonation, `null`, false},
		{"multiple addresses", MultipleAddressesKey, `{"addresses": 2}`, false},
		{"negative addresses", MultipleAddressesKey, `{"addresses": -2}`, true},
		{"hopping", QBPoolHopping, `{"bad_luck_limit": 2}`, false},
		{"hopping without limit", QBPoolHopping, `{}`, true},
		{"malformed", ShareDonation, `{"threshold": "high"}`, true},
		{"unknown", "selfish_mining", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, miner := setup(t, rewards.SchemeQB)
			h, err := New(tt.behaviour, miner, json.RawMessage(tt.args), random.New(1, nil))
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.IsType(err, errors.ErrorTypeConfig) {
					t.Errorf("New() error = %v, want config error", err)
				}
				return
			}
			if h == nil {
				t.Error("New() returned a nil handler")
			}
		})
	}
}

func TestNames(t *testing.T) {
	want := []string{DefaultKey, MultipleAddressesKey, QBPoolHopping, QBShareWithholding, ShareDonation, ShareWithholding}
	slices.Sort(want)
	if got := Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
