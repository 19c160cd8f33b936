package runstore

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"
)

// BadgerStore persists the node table in a BadgerDB directory so a run can
// be resumed after an interruption: nodes recorded Succeeded are not
// re-invoked, their stored outputs are reused.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the store under dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening state store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(runID, nodeID string) []byte {
	return []byte("run/" + runID + "/node/" + nodeID)
}

// Put stores rec, overwriting any previous record for the same key.
func (s *BadgerStore) Put(_ context.Context, rec *Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record for '%s': %w", rec.NodeID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(rec.RunID, rec.NodeID), payload)
	})
}

// Get returns the record for (runID, nodeID), or ErrNotFound.
func (s *BadgerStore) Get(_ context.Context, runID, nodeID string) (*Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(runID, nodeID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records of a run in key order.
func (s *BadgerStore) List(_ context.Context, runID string) ([]*Record, error) {
	prefix := []byte("run/" + runID + "/node/")
	var out []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
