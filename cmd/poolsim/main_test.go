package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bardlex/poolsim/internal/config"
	"github.com/bardlex/poolsim/internal/database"
	"github.com/bardlex/poolsim/internal/messaging"
	"github.com/bardlex/poolsim/internal/simulator"
	"github.com/bardlex/poolsim/pkg/log"
)

const experimentJSON = `{
	"seed": 7,
	"shares": 2000,
	"shares_per_block": 50,
	"pools": [
		{"name": "queue", "reward_scheme": "qb", "args": {"prop_credits_lost": 0.5}},
		{"name": "window", "reward_scheme": "pplns", "args": {"n": 100}}
	],
	"miners": [
		{"address": "honest", "hashrate": 1, "pool": "queue", "count": 4},
		{"address": "hopper", "hashrate": 2, "pool": "queue", "behaviour": "qb_pool_hopping", "args": {"bad_luck_limit": 2}},
		{"hashrate": 1, "pool": "window", "count": 2}
	]
}`

func writeExperiment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hopping.json")
	if err := os.WriteFile(path, []byte(experimentJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(path string) *config.Config {
	return &config.Config{
		ServiceName:    "poolsim-test",
		Version:        "test",
		ExperimentPath: path,
		ExportTimeout:  time.Second,
		LogLevel:       "error",
		LogFormat:      "json",
	}
}

func TestRun(t *testing.T) {
	cfg := testConfig(writeExperiment(t))

	var out bytes.Buffer
	if err := run(context.Background(), cfg, log.Discard(), &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if result["experiment_id"] != "hopping" {
		t.Errorf("experiment_id = %v, want hopping", result["experiment_id"])
	}
	if result["shares"] != float64(2000) {
		t.Errorf("shares = %v, want 2000", result["shares"])
	}
	if miners, _ := result["miners"].([]any); len(miners) != 7 {
		t.Errorf("len(miners) = %d, want 7", len(miners))
	}
}

func TestRun_ExperimentIDOverride(t *testing.T) {
	cfg := testConfig(writeExperiment(t))
	cfg.ExperimentID = "override"

	var out bytes.Buffer
	if err := run(context.Background(), cfg, log.Discard(), &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"experiment_id": "override"`)) {
		t.Errorf("output lacks the overridden id:\n%s", out.String())
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) *config.Config
	}{
		{
			name: "missing experiment",
			cfg: func(t *testing.T) *config.Config {
				return testConfig(filepath.Join(t.TempDir(), "none.json"))
			},
		},
		{
			name: "unbindable zmq endpoint",
			cfg: func(t *testing.T) *config.Config {
				cfg := testConfig(writeExperiment(t))
				cfg.ZMQPubAddr = "invalid://endpoint"
				return cfg
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(context.Background(), tt.cfg(t), log.Discard(), &out); err == nil {
				t.Error("run() error = nil, want error")
			}
			if out.Len() != 0 {
				t.Errorf("run() wrote output on failure: %s", out.String())
			}
		})
	}
}

func TestRun_CancelledWritesPartialResult(t *testing.T) {
	cfg := testConfig(writeExperiment(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if err := run(ctx, cfg, log.Discard(), &out); err == nil {
		t.Fatal("run() error = nil for a cancelled context")
	}
	if !json.Valid(out.Bytes()) {
		t.Errorf("partial result is not JSON: %s", out.String())
	}
}

func TestBuildRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing configured", func(t *testing.T) {
		r, err := buildRecorder(ctx, testConfig(""), log.Discard())
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := r.(simulator.Discard); !ok {
			t.Errorf("buildRecorder() = %T, want simulator.Discard", r)
		}
	})

	t.Run("single backend", func(t *testing.T) {
		cfg := testConfig("")
		cfg.LevelDBPath = filepath.Join(t.TempDir(), "db")

		r, err := buildRecorder(ctx, cfg, log.Discard())
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = r.Close() }()
		if _, ok := r.(*database.Manager); !ok {
			t.Errorf("buildRecorder() = %T, want *database.Manager", r)
		}
	})

	t.Run("several targets", func(t *testing.T) {
		cfg := testConfig("")
		cfg.LevelDBPath = filepath.Join(t.TempDir(), "db")
		cfg.ZMQPubAddr = "inproc://poolsim-main-test"

		r, err := buildRecorder(ctx, cfg, log.Discard())
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = r.Close() }()

		multi, ok := r.(simulator.MultiRecorder)
		if !ok {
			t.Fatalf("buildRecorder() = %T, want simulator.MultiRecorder", r)
		}
		if len(multi) != 2 {
			t.Fatalf("len(recorders) = %d, want 2", len(multi))
		}
		if _, ok := multi[1].(*messaging.ZMQPublisher); !ok {
			t.Errorf("recorders[1] = %T, want *messaging.ZMQPublisher", multi[1])
		}
	})
}

func TestSimulatorOptions(t *testing.T) {
	cfg := testConfig("")
	if n := len(simulatorOptions(cfg)); n != 1 {
		t.Errorf("len(simulatorOptions()) = %d without a rate, want 1", n)
	}

	cfg.ShareRate = 500
	cfg.ShareBurst = 10
	if n := len(simulatorOptions(cfg)); n != 2 {
		t.Errorf("len(simulatorOptions()) = %d with a rate, want 2", n)
	}
}
