package meta

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/tiglabs/raft"

	"github.com/baudgraph/graphd/proto/metapb"
)

// heartbeatPortOffset and replicatePortOffset derive the meta raft
// transport's two ports from the daemon's single configured RPC port,
// the same fixed-offset scheme the storage daemon uses.
const (
	heartbeatPortOffset = 1
	replicatePortOffset = 2
)

// nodeResolver maps a raft numeric node id to the meta peer it runs on.
// The meta partition never changes membership after bootstrap, so
// unlike the storage daemon's resolver this one is populated once and
// never needs refcounted removal.
type nodeResolver struct {
	mu    sync.RWMutex
	nodes map[uint64]metapb.HostAddr
}

func newNodeResolver() *nodeResolver {
	return &nodeResolver{nodes: make(map[uint64]metapb.HostAddr)}
}

func (r *nodeResolver) add(id uint64, addr metapb.HostAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[id] = addr
}

func (r *nodeResolver) resolve(id uint64) metapb.HostAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[id]
}

var _ raft.SocketResolver = (*nodeResolver)(nil)

func (r *nodeResolver) NodeAddress(nodeID uint64, stype raft.SocketType) (string, error) {
	addr := r.resolve(nodeID)
	if addr.IsZero() {
		return "", fmt.Errorf("meta: no address registered for raft node %d", nodeID)
	}
	switch stype {
	case raft.HeartBeat:
		return fmt.Sprintf("%s:%d", addr.Host, addr.Port+heartbeatPortOffset), nil
	case raft.Replicate:
		return fmt.Sprintf("%s:%d", addr.Host, addr.Port+replicatePortOffset), nil
	default:
		return "", fmt.Errorf("meta: unknown raft socket type %v", stype)
	}
}

// nodeID derives the raft-level numeric node id from a meta peer's
// network identity, the same hash the storage daemon uses so the two
// never need to agree on a separate id scheme.
func nodeID(addr metapb.HostAddr) uint64 {
	h := fnv.New64a()
	h.Write([]byte(addr.String()))
	id := h.Sum64()
	if id == 0 {
		id = 1
	}
	return id
}
