package leveldb

import (
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&Config{Path: filepath.Join(t.TempDir(), "poolsim.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestStore_BlocksInShareOrder(t *testing.T) {
	s := openStore(t)

	writes := []struct {
		exp  string
		seq  uint64
		pool string
		data string
	}{
		{"exp", 100, "qb", "third"},
		{"exp", 9, "qb", "first"},
		{"exp", 10, "pps", "second"},
		{"other", 1, "qb", "elsewhere"},
		{"exp-2", 1, "qb", "prefix sibling"},
	}
	for _, w := range writes {
		if err := s.PutBlock(w.exp, w.seq, w.pool, []byte(w.data)); err != nil {
			t.Fatalf("PutBlock() error = %v", err)
		}
	}

	blocks, err := s.Blocks("exp")
	if err != nil {
		t.Fatalf("Blocks() error = %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(blocks) != len(want) {
		t.Fatalf("len(Blocks()) = %d, want %d", len(blocks), len(want))
	}
	for i, b := range blocks {
		if string(b) != want[i] {
			t.Errorf("Blocks()[%d] = %q, want %q", i, b, want[i])
		}
	}
}

func TestStore_Result(t *testing.T) {
	s := openStore(t)

	if _, ok, err := s.Result("exp"); err != nil || ok {
		t.Errorf("Result() before write = (%v, %v), want (false, nil)", ok, err)
	}

	if err := s.PutResult("exp", []byte(`{"shares":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.PutResult("exp", []byte(`{"shares":2}`)); err != nil {
		t.Fatal(err)
	}

	data, ok, err := s.Result("exp")
	if err != nil || !ok {
		t.Fatalf("Result() = (%v, %v)", ok, err)
	}
	if string(data) != `{"shares":2}` {
		t.Errorf("Result() = %s, want the latest write", data)
	}
}

func TestStore_DeleteExperiment(t *testing.T) {
	s := openStore(t)

	for seq := range uint64(3) {
		if err := s.PutBlock("exp", seq, "qb", []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.PutBlock("keep", 1, "qb", []byte("y")); err != nil {
		t.Fatal(err)
	}
	if err := s.PutResult("exp", []byte("r")); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteExperiment("exp"); err != nil {
		t.Fatalf("DeleteExperiment() error = %v", err)
	}

	if blocks, _ := s.Blocks("exp"); len(blocks) != 0 {
		t.Errorf("Blocks(exp) = %d after delete, want 0", len(blocks))
	}
	if _, ok, _ := s.Result("exp"); ok {
		t.Error("Result(exp) still present after delete")
	}
	if blocks, _ := s.Blocks("keep"); len(blocks) != 1 {
		t.Errorf("Blocks(keep) = %d, want 1", len(blocks))
	}
}

func TestStore_ColonInExperimentID(t *testing.T) {
	s := openStore(t)

	if err := s.PutBlock("run", 1, "qb", []byte("mine")); err != nil {
		t.Fatal(err)
	}
	// "run:2" would share the "run:" prefix without the length
	if err := s.PutBlock("run:2", 1, "qb", []byte("theirs")); err != nil {
		t.Fatal(err)
	}
	if err := s.PutBlock("run", 5, "x:y", []byte("mine too")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		exp  string
		want []string
	}{
		{"run", []string{"mine", "mine too"}},
		{"run:2", []string{"theirs"}},
		{"run:", nil},
	}
	for _, tt := range tests {
		blocks, err := s.Blocks(tt.exp)
		if err != nil {
			t.Fatalf("Blocks(%q) error = %v", tt.exp, err)
		}
		if len(blocks) != len(tt.want) {
			t.Errorf("Blocks(%q) = %q, want %q", tt.exp, blocks, tt.want)
			continue
		}
		for i, b := range blocks {
			if string(b) != tt.want[i] {
				t.Errorf("Blocks(%q)[%d] = %q, want %q", tt.exp, i, b, tt.want[i])
			}
		}
	}

	if err := s.DeleteExperiment("run"); err != nil {
		t.Fatal(err)
	}
	if blocks, _ := s.Blocks("run:2"); len(blocks) != 1 {
		t.Errorf("Blocks(run:2) = %d after deleting run, want 1", len(blocks))
	}
}
