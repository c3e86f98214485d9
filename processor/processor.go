// Package processor implements the async fan-out shared by every RPC
// that dispatches work across a set of partitions and joins on a single
// completion callback: the base processor described as C6.
package processor

import (
	"sync"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
)

// OnFinished is invoked exactly once, after the last per-partition
// callback resolves. failures is nil/empty when every partition
// succeeded.
type OnFinished func(failures []storagepb.PartitionResult)

// Base is the generic fan-out/join primitive. A processor instance is
// single-use: construct one per RPC.
type Base struct {
	mu         sync.Mutex
	store      kv.AsyncStore
	callingNum int
	codes      []storagepb.PartitionResult
	onFinished OnFinished
	fired      bool
}

// NewBase creates a processor fanning out over numParts partitions.
// onFinished fires once callingNum reaches zero via Arrive.
func NewBase(store kv.AsyncStore, numParts int, onFinished OnFinished) *Base {
	return &Base{
		store:      store,
		callingNum: numParts,
		onFinished: onFinished,
	}
}

// PushResultCode translates a KV result code for one partition and
// records it if it's a failure. LeaderChanged results are enriched
// with the store's current suspected leader, when available.
func (b *Base) PushResultCode(space metapb.SpaceID, part metapb.PartID, code storagepb.ResultCode) {
	errCode := storagepb.TranslateResultCode(code)
	if errCode == storagepb.ErrSucceeded {
		return
	}
	result := storagepb.PartitionResult{PartID: part, Code: errCode}
	if errCode == storagepb.ErrLeaderChanged {
		if leader, err := b.store.PartLeader(space, part); err == nil && !leader.IsZero() {
			result.Leader = &leader
		}
	}

	b.mu.Lock()
	b.codes = append(b.codes, result)
	b.mu.Unlock()
}

// PushFailure records an already-translated failure, for call sites
// (e.g. the atomic edge writer) that fail a partition for a reason
// with no corresponding KV result code.
func (b *Base) PushFailure(part metapb.PartID, code storagepb.ErrorCode) {
	if code == storagepb.ErrSucceeded {
		return
	}
	b.mu.Lock()
	b.codes = append(b.codes, storagepb.PartitionResult{PartID: part, Code: code})
	b.mu.Unlock()
}

// Arrive decrements the completion latch by one and, if it reaches
// zero, calls onFinished exactly once.
func (b *Base) Arrive() {
	b.mu.Lock()
	b.callingNum--
	done := b.callingNum <= 0 && !b.fired
	if done {
		b.fired = true
	}
	codes := b.codes
	b.mu.Unlock()

	if done {
		b.onFinished(codes)
	}
}
