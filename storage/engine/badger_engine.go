// Package engine wraps the log-structured KV engine each partition's
// state machine applies committed writes into. Badger gives every
// partition its own embedded LSM-tree store.
package engine

import (
	"github.com/dgraph-io/badger"

	"github.com/baudgraph/graphd/util/log"
)

// Engine is the per-partition on-disk store a raft state machine
// applies committed commands into.
type Engine struct {
	db *badger.DB
}

// Open opens (creating if absent) a badger store rooted at path.
func Open(path string) (*Engine, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// Get returns the value for key, or found=false if absent.
func (e *Engine) Get(key []byte) (value []byte, found bool, err error) {
	err = e.db.View(func(txn *badger.Txn) error {
		item, txErr := txn.Get(key)
		if txErr == badger.ErrKeyNotFound {
			return nil
		}
		if txErr != nil {
			return txErr
		}
		found = true
		value, txErr = item.ValueCopy(nil)
		return txErr
	})
	return value, found, err
}

// KVPair is one key/value to write in a batch.
type KVPair struct {
	Key   []byte
	Value []byte
}

// ApplyPuts writes kvs atomically.
func (e *Engine) ApplyPuts(kvs []KVPair) error {
	return e.db.Update(func(txn *badger.Txn) error {
		for _, kv := range kvs {
			if err := txn.Set(kv.Key, kv.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyRemoves deletes keys atomically.
func (e *Engine) ApplyRemoves(keys [][]byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyRemoveRange deletes every key in the half-open range [start, end).
func (e *Engine) ApplyRemoveRange(start, end []byte) error {
	var toDelete [][]byte
	it := e.Scan(start, end)
	for it.Next() {
		toDelete = append(toDelete, append([]byte{}, it.Key()...))
	}
	if err := it.Err(); err != nil {
		return err
	}
	return e.ApplyRemoves(toDelete)
}

// Iterator walks [start, end) in key order.
type Iterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	start   []byte
	end     []byte
	started bool
	key     []byte
	value   []byte
	err     error
}

// Scan opens a read-only iterator over [start, end). Close must be
// called when done to release the underlying transaction.
func (e *Engine) Scan(start, end []byte) *Iterator {
	txn := e.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	return &Iterator{txn: txn, it: it, start: start, end: end}
}

func (it *Iterator) Next() bool {
	if !it.started {
		it.started = true
		it.it.Seek(it.start)
	} else {
		it.it.Next()
	}
	if !it.it.Valid() {
		return false
	}
	item := it.it.Item()
	key := item.KeyCopy(nil)
	if len(it.end) > 0 && compare(key, it.end) >= 0 {
		return false
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		it.err = err
		return false
	}
	it.key, it.value = key, val
	return true
}

func (it *Iterator) Key() []byte      { return it.key }
func (it *Iterator) Value() []byte    { return it.value }
func (it *Iterator) Bookmark() []byte { return it.key }
func (it *Iterator) Err() error       { return it.err }
func (it *Iterator) Close() {
	it.it.Close()
	it.txn.Discard()
	log.Debug("engine: scan closed")
}

func compare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}
