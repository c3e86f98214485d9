package meta

import (
	"context"
	"fmt"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/util/json"
)

// partsAllocPrefix keys every space's partition allocation record, so a
// storage or client daemon can resolve (space) -> [part -> peers]
// without re-deriving it from its own local topology.
const partsAllocPrefix = "__meta_parts_alloc_"

func partsAllocKey(space metapb.SpaceID) []byte {
	return []byte(fmt.Sprintf("%s%d", partsAllocPrefix, space))
}

// PartsAlloc is the allocation record of one space: which partitions
// exist and who their replica peers are, as last registered by the
// storage daemons that opened them.
type PartsAlloc struct {
	Space metapb.SpaceID
	Parts []metapb.Partition
}

// RegisterParts stores (or replaces) the allocation record of space.
// Server.Heartbeat calls this on every storage heartbeat, once per space
// the reporting daemon lists in its partition stats, so the stored
// record is always the latest report for that space.
func (s *Service) RegisterParts(ctx context.Context, alloc PartsAlloc) error {
	encoded, err := json.Marshal(alloc)
	if err != nil {
		return err
	}

	done := make(chan storagepb.ResultCode, 1)
	s.store.AsyncMultiPut(ctx, metapb.MetaSpaceID, metapb.MetaPartID,
		[]kv.KVPair{{Key: partsAllocKey(alloc.Space), Value: encoded}},
		func(code storagepb.ResultCode) { done <- code })
	select {
	case code := <-done:
		if code != storagepb.ResultSucceeded {
			return &clusterIDWriteError{code: code}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetPartsAlloc returns the allocation record of space, if any storage
// daemon has ever registered one.
func (s *Service) GetPartsAlloc(ctx context.Context, space metapb.SpaceID) (PartsAlloc, bool, error) {
	val, found, err := s.store.Get(ctx, metapb.MetaSpaceID, metapb.MetaPartID, partsAllocKey(space))
	if err != nil || !found {
		return PartsAlloc{}, found, err
	}
	var alloc PartsAlloc
	if err := json.Unmarshal(val, &alloc); err != nil {
		return PartsAlloc{}, false, err
	}
	return alloc, true, nil
}

// ListParts returns just the partition ids of space's allocation
// record, in the order they were last registered.
func (s *Service) ListParts(ctx context.Context, space metapb.SpaceID) ([]metapb.PartID, error) {
	alloc, found, err := s.GetPartsAlloc(ctx, space)
	if err != nil || !found {
		return nil, err
	}
	ids := make([]metapb.PartID, len(alloc.Parts))
	for i, p := range alloc.Parts {
		ids[i] = p.Part
	}
	return ids, nil
}
