package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bardlex/poolsim/internal/config"
	"github.com/bardlex/poolsim/internal/database/leveldb"
	"github.com/bardlex/poolsim/internal/database/redis"
	"github.com/bardlex/poolsim/internal/rewards"
	"github.com/bardlex/poolsim/internal/simulator"
	"github.com/bardlex/poolsim/pkg/log"
)

var foundAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func qbEvent() simulator.BlockEvent {
	return simulator.BlockEvent{
		ID:           "ev-1",
		ExperimentID: "exp",
		Sequence:     7,
		Pool:         "queue",
		Metadata: rewards.QBBlockMetadata{
			BlockMetadata: rewards.BlockMetadata{
				RewardScheme:   rewards.SchemeQB,
				SharesPerBlock: 141,
				MinerAddress:   "finder",
			},
			CreditBalanceReceiver: 100,
			ReceiverAddress:       "top",
			ResetBalanceReceiver:  70,
			PropCreditsLost:       0.3,
			CreditsSum:            140,
		},
		FoundAt: foundAt,
	}
}

func testResult() *simulator.Result {
	return &simulator.Result{
		ExperimentID: "exp",
		Seed:         42,
		Shares:       1000,
		Blocks:       3,
		Elapsed:      1500 * time.Millisecond,
		FinishedAt:   foundAt,
		Pools: []simulator.PoolResult{
			{
				Name:         "queue",
				RewardScheme: rewards.SchemeQB,
				Records: []rewards.MinerRecord{
					{Address: "a", SharesCount: 600, BlocksMined: 2, Credits: 12},
					{Address: "b", SharesCount: 300, BlocksMined: 1, Credits: 5},
				},
			},
			{
				Name:         "flat",
				RewardScheme: rewards.SchemePPS,
				Records: []rewards.MinerRecord{
					{Address: "c", SharesCount: 100, Credits: 100},
				},
			},
		},
	}
}

func TestBlockRow(t *testing.T) {
	row := BlockRow(qbEvent())
	if row.RewardScheme != rewards.SchemeQB || row.MinerAddress != "finder" || row.SharesPerBlock != 141 {
		t.Errorf("BlockRow() = %+v", row)
	}
	if row.ReceiverAddress == nil || *row.ReceiverAddress != "top" {
		t.Fatalf("ReceiverAddress = %v, want top", row.ReceiverAddress)
	}
	if *row.ResetBalanceReceiver != 70 || *row.CreditsSum != 140 || *row.PropCreditsLost != 0.3 {
		t.Errorf("QB columns = %d %d %v", *row.ResetBalanceReceiver, *row.CreditsSum, *row.PropCreditsLost)
	}

	ev := qbEvent()
	ev.Metadata = rewards.BlockMetadata{RewardScheme: rewards.SchemePPS, SharesPerBlock: 3, MinerAddress: "x"}
	row = BlockRow(ev)
	if row.ReceiverAddress != nil || row.CreditsSum != nil {
		t.Errorf("BlockRow() for pps sets receiver columns: %+v", row)
	}
}

func TestMinerRows(t *testing.T) {
	rows := MinerRows(testResult())
	if len(rows) != 3 {
		t.Fatalf("len(MinerRows()) = %d, want 3", len(rows))
	}
	if rows[2].Pool != "flat" || rows[2].MinerAddress != "c" || rows[2].Credits != 100 {
		t.Errorf("rows[2] = %+v", rows[2])
	}

	exp := ExperimentRow(testResult())
	if exp.ElapsedMs != 1500 || exp.Seed != 42 {
		t.Errorf("ExperimentRow() = %+v", exp)
	}
}

func TestLeaderboardAndPoints(t *testing.T) {
	r := testResult()
	board := Leaderboard(r.Pools[0])
	if len(board) != 2 || board[0].Address != "a" || board[0].Credits != 12 {
		t.Errorf("Leaderboard() = %+v", board)
	}

	// one run point plus one per record
	if n := len(InfluxResultPoints(r)); n != 4 {
		t.Errorf("len(InfluxResultPoints()) = %d, want 4", n)
	}

	b := InfluxBlock(qbEvent())
	if b.ReceiverAddress != "top" || b.CreditsSum != 140 || b.Sequence != 7 {
		t.Errorf("InfluxBlock() = %+v", b)
	}
}

func TestConfigFromService(t *testing.T) {
	cfg := ConfigFromService(&config.Config{ExportTimeout: time.Second})
	if !cfg.Empty() {
		t.Errorf("Empty() = false with no addresses: %+v", cfg)
	}

	cfg = ConfigFromService(&config.Config{
		RedisURL:    "redis://localhost:6379/0",
		LevelDBPath: "/tmp/poolsim",
	})
	if cfg.Empty() || cfg.Redis == nil || cfg.LevelDB == nil || cfg.Postgres != nil || cfg.Influx != nil {
		t.Errorf("ConfigFromService() = %+v", cfg)
	}
}

func TestManager_LevelDBOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db")

	m, err := NewManager(ctx, &Config{LevelDB: &leveldb.Config{Path: path}}, log.Discard())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if got := m.Backends(); !slices.Equal(got, []string{BackendLevelDB}) {
		t.Errorf("Backends() = %v", got)
	}
	if err := m.Health(ctx); err != nil {
		t.Errorf("Health() error = %v", err)
	}

	var r simulator.Recorder = m
	if err := r.RecordBlock(ctx, qbEvent()); err != nil {
		t.Fatalf("RecordBlock() error = %v", err)
	}
	if err := r.RecordResult(ctx, testResult()); err != nil {
		t.Fatalf("RecordResult() error = %v", err)
	}

	blocks, err := m.LevelDB.Blocks("exp")
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(Blocks()) = %d, want 1", len(blocks))
	}
	var fields map[string]any
	if err := json.Unmarshal(blocks[0], &fields); err != nil {
		t.Fatal(err)
	}
	if fields["pool"] != "queue" {
		t.Errorf("stored block = %s", blocks[0])
	}

	data, ok, err := m.LevelDB.Result("exp")
	if err != nil || !ok {
		t.Fatalf("Result() = %v, %v", ok, err)
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("stored result is not JSON: %v", err)
	}
	if result["experiment_id"] != "exp" {
		t.Errorf("stored result = %s", data)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestManager_ReportLevelDB(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(ctx, &Config{LevelDB: &leveldb.Config{Path: filepath.Join(t.TempDir(), "db")}}, log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Close() }()

	second := qbEvent()
	second.ID, second.Sequence = "ev-2", 9
	for _, ev := range []simulator.BlockEvent{qbEvent(), second} {
		if err := m.RecordBlock(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.RecordResult(ctx, testResult()); err != nil {
		t.Fatal(err)
	}

	report, err := m.Report(ctx, "exp", ReportOptions{Pools: []string{"queue", "flat"}, Top: 3})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Postgres != nil || report.Redis != nil || report.Influx != nil {
		t.Errorf("Report() has sections of disabled backends: %+v", report)
	}
	if report.LevelDB.Blocks != 2 {
		t.Errorf("LevelDB.Blocks = %d, want 2", report.LevelDB.Blocks)
	}
	var result map[string]any
	if err := json.Unmarshal(report.LevelDB.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result["blocks"] != float64(3) {
		t.Errorf("LevelDB.Result = %s", report.LevelDB.Result)
	}

	other, err := m.Report(ctx, "other", ReportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if other.LevelDB.Blocks != 0 || other.LevelDB.Result != nil {
		t.Errorf("Report() of unknown run = %+v", other.LevelDB)
	}
}

// serverURL returns the address of a test server, skipping the test when
// key is unset.
func serverURL(t *testing.T, key string) string {
	t.Helper()
	url := os.Getenv(key)
	if url == "" {
		t.Skipf("%s not set", key)
	}
	return url
}

func TestManager_ReportServers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		set   func(cfg *config.Config, url string)
		check func(t *testing.T, r *Report)
	}{
		{
			name: "postgres",
			key:  "POOLSIM_TEST_POSTGRES_URL",
			set:  func(cfg *config.Config, url string) { cfg.PostgresURL = url },
			check: func(t *testing.T, r *Report) {
				if r.Postgres.Experiment == nil || r.Postgres.Experiment.Seed != 42 {
					t.Errorf("Experiment = %+v", r.Postgres.Experiment)
				}
				if len(r.Postgres.Blocks) != 1 || r.Postgres.Blocks[0].Sequence != 7 {
					t.Errorf("Blocks = %+v", r.Postgres.Blocks)
				}
				if miners := r.Postgres.Miners["queue"]; len(miners) != 2 || miners[0].MinerAddress != "a" {
					t.Errorf("Miners[queue] = %+v", miners)
				}
			},
		},
		{
			name: "redis",
			key:  "POOLSIM_TEST_REDIS_URL",
			set:  func(cfg *config.Config, url string) { cfg.RedisURL = url },
			check: func(t *testing.T, r *Report) {
				queue := r.Redis.Pools["queue"]
				if queue == nil || queue.Blocks != 1 || len(queue.LastBlock) == 0 {
					t.Fatalf("Pools[queue] = %+v", queue)
				}
				if len(queue.Top) != 1 || queue.Top[0] != (redis.Credit{Address: "a", Credits: 12}) {
					t.Errorf("Top = %+v", queue.Top)
				}
				if len(r.Redis.Result) == 0 {
					t.Error("Result missing")
				}
			},
		},
		{
			name: "influx",
			key:  "POOLSIM_TEST_INFLUX_URL",
			set: func(cfg *config.Config, url string) {
				cfg.InfluxURL = url
				cfg.InfluxToken = os.Getenv("POOLSIM_TEST_INFLUX_TOKEN")
			},
			check: func(t *testing.T, r *Report) {
				if r.Influx.BlockCounts["queue"] < 1 {
					t.Errorf("BlockCounts = %v", r.Influx.BlockCounts)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{ExportTimeout: 5 * time.Second, InfluxOrg: "poolsim", InfluxBucket: "simulations"}
			tt.set(cfg, serverURL(t, tt.key))

			ctx := context.Background()
			m, err := NewManager(ctx, ConfigFromService(cfg), log.Discard())
			if err != nil {
				t.Fatal(err)
			}
			defer func() { _ = m.Close() }()

			ev := qbEvent()
			ev.FoundAt = time.Now()
			ev.ExperimentID = fmt.Sprintf("report-%s-%d", tt.name, time.Now().UnixNano())
			ev.ID = ev.ExperimentID + "-queue-1"
			result := testResult()
			result.ExperimentID = ev.ExperimentID

			// a replayed event must not be counted twice
			for range 2 {
				if err := m.RecordBlock(ctx, ev); err != nil {
					t.Fatal(err)
				}
			}
			if err := m.RecordResult(ctx, result); err != nil {
				t.Fatal(err)
			}

			report, err := m.Report(ctx, ev.ExperimentID, ReportOptions{
				Pools:      []string{"queue", "flat"},
				Top:        1,
				BlockLimit: 10,
				Range:      time.Hour,
			})
			if err != nil {
				t.Fatalf("Report() error = %v", err)
			}
			tt.check(t, report)
		})
	}
}
