package server

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/baudgraph/graphd/proto/metapb"
)

// ErrPartNotFound is returned by any lookup against an unknown
// (space, part) pair.
type ErrPartNotFound struct {
	Space metapb.SpaceID
	Part  metapb.PartID
}

func (e *ErrPartNotFound) Error() string {
	return fmt.Sprintf("server: partition (%d,%d) not found", e.Space, e.Part)
}

// partitionMeta is the btree.Item stored per partition: ordered by id,
// so the tree's Ascend walk is exactly Parts()'s required order.
type partitionMeta struct {
	id    metapb.PartID
	peers []metapb.HostAddr
}

func (p *partitionMeta) Less(other btree.Item) bool {
	return p.id < other.(*partitionMeta).id
}

// PartitionManager is the C1 partition directory: which parts exist in
// a space, and who their replica peers are. Each space's partitions are
// held in their own btree, ordered by part id, under a single mutex, so
// reads never block on I/O and every update to one (space, part) entry
// is totally ordered with respect to every other update to that entry.
type PartitionManager struct {
	mu    sync.RWMutex
	parts map[metapb.SpaceID]*btree.BTree
}

func NewPartitionManager() *PartitionManager {
	return &PartitionManager{parts: make(map[metapb.SpaceID]*btree.BTree)}
}

// spaces returns every space with at least one registered partition.
func (m *PartitionManager) spaces() []metapb.SpaceID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]metapb.SpaceID, 0, len(m.parts))
	for space := range m.parts {
		ids = append(ids, space)
	}
	return ids
}

// Parts returns every known partition id of space, in ascending order.
func (m *PartitionManager) Parts(space metapb.SpaceID) []metapb.PartID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tree, ok := m.parts[space]
	if !ok {
		return nil
	}
	ids := make([]metapb.PartID, 0, tree.Len())
	tree.Ascend(func(item btree.Item) bool {
		ids = append(ids, item.(*partitionMeta).id)
		return true
	})
	return ids
}

// Peers returns the configured replica set of (space, part).
func (m *PartitionManager) Peers(space metapb.SpaceID, part metapb.PartID) ([]metapb.HostAddr, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tree, ok := m.parts[space]
	if !ok {
		return nil, &ErrPartNotFound{Space: space, Part: part}
	}
	item := tree.Get(&partitionMeta{id: part})
	if item == nil {
		return nil, &ErrPartNotFound{Space: space, Part: part}
	}
	return item.(*partitionMeta).peers, nil
}

// AddPart registers (space, part) with peers. It is idempotent: adding
// an already-registered partition with the same peer set is a no-op.
// Adding it with a different peer set is a configuration error, since
// membership changes go through raft conf-change, not this directory.
func (m *PartitionManager) AddPart(space metapb.SpaceID, part metapb.PartID, peers []metapb.HostAddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tree, ok := m.parts[space]
	if !ok {
		tree = btree.New(32)
		m.parts[space] = tree
	}
	if item := tree.Get(&partitionMeta{id: part}); item != nil {
		existing := item.(*partitionMeta)
		if !samePeers(existing.peers, peers) {
			return fmt.Errorf("server: partition (%d,%d) already registered with a different peer set", space, part)
		}
		return nil
	}
	tree.ReplaceOrInsert(&partitionMeta{id: part, peers: peers})
	return nil
}

func samePeers(a, b []metapb.HostAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
