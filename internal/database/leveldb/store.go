// Package leveldb keeps a local, embedded log of simulation output so a
// run can be inspected without any database server.
package leveldb

import (
	"fmt"

	goleveldb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Config holds LevelDB configuration
type Config struct {
	Path string
	// Sync forces an fsync after every write.
	Sync bool
}

// Store is a LevelDB-backed log of block events and results.
type Store struct {
	db   *goleveldb.DB
	sync bool
}

// Open opens or creates the store at cfg.Path.
func Open(cfg *Config) (*Store, error) {
	db, err := goleveldb.OpenFile(cfg.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db, sync: cfg.Sync}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) writeOptions() *opt.WriteOptions {
	return &opt.WriteOptions{Sync: s.sync}
}

// blockKey sorts block events of an experiment by share sequence. The id
// is length-prefixed so that no id's prefix covers another id's keys.
func blockKey(experimentID string, seq uint64, pool string) []byte {
	return fmt.Appendf(blockPrefix(experimentID), "%020d:%s", seq, pool)
}

func blockPrefix(experimentID string) []byte {
	return fmt.Appendf(nil, "block:%d:%s:", len(experimentID), experimentID)
}

func resultKey(experimentID string) []byte {
	return fmt.Appendf(nil, "result:%s", experimentID)
}

// PutBlock stores an encoded block event.
func (s *Store) PutBlock(experimentID string, seq uint64, pool string, data []byte) error {
	if err := s.db.Put(blockKey(experimentID, seq, pool), data, s.writeOptions()); err != nil {
		return fmt.Errorf("failed to store block: %w", err)
	}
	return nil
}

// Blocks returns the encoded block events of an experiment in share order.
func (s *Store) Blocks(experimentID string) ([][]byte, error) {
	iter := s.db.NewIterator(util.BytesPrefix(blockPrefix(experimentID)), nil)
	defer iter.Release()

	var blocks [][]byte
	for iter.Next() {
		// the iterator reuses its buffers
		blocks = append(blocks, append([]byte(nil), iter.Value()...))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return blocks, nil
}

// PutResult stores the encoded result of an experiment, replacing an
// earlier one.
func (s *Store) PutResult(experimentID string, data []byte) error {
	if err := s.db.Put(resultKey(experimentID), data, s.writeOptions()); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Result returns the encoded result of an experiment. The bool is false
// when none was stored.
func (s *Store) Result(experimentID string) ([]byte, bool, error) {
	data, err := s.db.Get(resultKey(experimentID), nil)
	if err == goleveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get result: %w", err)
	}
	return data, true, nil
}

// DeleteExperiment removes everything stored for an experiment.
func (s *Store) DeleteExperiment(experimentID string) error {
	batch := new(goleveldb.Batch)

	iter := s.db.NewIterator(util.BytesPrefix(blockPrefix(experimentID)), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterator error: %w", err)
	}
	batch.Delete(resultKey(experimentID))

	if err := s.db.Write(batch, s.writeOptions()); err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	return nil
}
