package raftkvstore

// Store is the local engine a raft-replicated state machine applies
// its committed commands against. BoltStore is the only
// implementation; the interface exists so callers that only need
// apply/read/snapshot never import bolt directly.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte, raftIndex uint64) error
	Delete(key []byte, raftIndex uint64) error
	Close() error
	NewIterator(startKey, endKey []byte) Iterator
	NewWriteBatch() WriteBatch
	GetSnapshot() (Snapshot, error)
	Applied() uint64
}

// Iterator walks a [startKey, endKey) range of the underlying bucket.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Snapshot is a consistent point-in-time read view, used both for
// serving a raft snapshot stream and for point lookups against it.
type Snapshot interface {
	NewIterator(startKey, endKey []byte) Iterator
	Get(key []byte) ([]byte, error)
	ApplyIndex() uint64
	Release()
}

// WriteBatch batches puts and deletes so they commit in one
// transaction, alongside the raft apply index they were applied at.
type WriteBatch interface {
	Put(key []byte, value []byte, raftIndex uint64)
	Delete(key []byte, raftIndex uint64)
	Commit() error
}
