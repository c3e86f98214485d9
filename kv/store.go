// Package kv defines the replicated-store contract (C2) that the base
// processor, lookup planner, and atomic edge writer are all built
// against, independent of whichever engine (badger, bolt, raft) backs a
// given partition.
package kv

import (
	"context"

	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
)

// PutCallback and RemoveCallback report the result of one async batch.
type PutCallback func(storagepb.ResultCode)
type RemoveCallback func(storagepb.ResultCode)

// KVPair is one key/value to write.
type KVPair = storagepb.KVPair

// Iterator walks a scan's results. Next advances and returns false at
// end-of-scan or on error (check Err). The iterator is restartable from
// the last key it returned, via Bookmark.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Bookmark() []byte
	Err() error
	Close()
}

// AsyncStore is the per-partition replicated KV contract every
// component above the engine layer depends on. All multi-key
// operations are atomic within the partition and complete by callback;
// callers never block on them.
type AsyncStore interface {
	AsyncMultiPut(ctx context.Context, space metapb.SpaceID, part metapb.PartID, kvs []KVPair, cb PutCallback)
	AsyncMultiRemove(ctx context.Context, space metapb.SpaceID, part metapb.PartID, keys [][]byte, cb RemoveCallback)
	AsyncRemoveRange(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte, cb RemoveCallback)

	Get(ctx context.Context, space metapb.SpaceID, part metapb.PartID, key []byte) ([]byte, bool, error)
	Scan(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte) (Iterator, error)

	// PartLeader returns the partition's current suspected leader. It
	// returns the zero HostAddr, not an error, before the partition has
	// completed its first election; callers poll.
	PartLeader(space metapb.SpaceID, part metapb.PartID) (metapb.HostAddr, error)
}
