package influx

import (
	"testing"
	"time"
)

func fieldMap(t *testing.T, keys []string, values []interface{}) map[string]interface{} {
	t.Helper()
	out := make(map[string]interface{}, len(keys))
	for i, k := range keys {
		out[k] = values[i]
	}
	return out
}

func TestBlockPoint(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		block        Block
		wantReceiver bool
	}{
		{
			name: "proportional pool",
			block: Block{
				ExperimentID: "exp", Pool: "window", RewardScheme: "pplns",
				MinerAddress: "alice", Sequence: 10, SharesPerBlock: 42, FoundAt: at,
			},
		},
		{
			name: "queue pool",
			block: Block{
				ExperimentID: "exp", Pool: "queue", RewardScheme: "qb",
				MinerAddress: "alice", Sequence: 11, SharesPerBlock: 7,
				ReceiverAddress: "bob", CreditsSum: 300, FoundAt: at,
			},
			wantReceiver: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BlockPoint(tt.block)
			if p.Name() != MeasurementBlocks {
				t.Errorf("Name() = %q, want %q", p.Name(), MeasurementBlocks)
			}
			if !p.Time().Equal(at) {
				t.Errorf("Time() = %v, want %v", p.Time(), at)
			}

			var keys []string
			var values []interface{}
			for _, f := range p.FieldList() {
				keys = append(keys, f.Key)
				values = append(values, f.Value)
			}
			fields := fieldMap(t, keys, values)

			if got := fields["shares_per_block"]; got != int64(tt.block.SharesPerBlock) {
				t.Errorf("shares_per_block = %v, want %d", got, tt.block.SharesPerBlock)
			}
			if _, ok := fields["receiver_address"]; ok != tt.wantReceiver {
				t.Errorf("receiver_address present = %v, want %v", ok, tt.wantReceiver)
			}

			tags := make(map[string]string)
			for _, tag := range p.TagList() {
				tags[tag.Key] = tag.Value
			}
			if tags["pool"] != tt.block.Pool || tags["experiment_id"] != "exp" {
				t.Errorf("tags = %v", tags)
			}
		})
	}
}

func TestMinerResultPoint(t *testing.T) {
	p := MinerResultPoint("exp", "queue", "alice", 10, 2, 7.5, time.Unix(0, 0))
	if p.Name() != MeasurementMinerResults {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementMinerResults)
	}
	if n := len(p.FieldList()); n != 3 {
		t.Errorf("len(FieldList()) = %d, want 3", n)
	}
}
