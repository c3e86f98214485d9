package server

import (
	"fmt"
	"sync"

	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/tiglabs/raft"
)

// heartbeatPortOffset and replicatePortOffset derive the raft
// transport's two ports from a node's single configured RPC port,
// rather than carrying two more CLI flags per daemon.
const (
	heartbeatPortOffset = 1
	replicatePortOffset = 2
)

type nodeRef struct {
	addr     metapb.HostAddr
	refCount int
}

// nodeResolver maps a raft numeric node id to the host it runs on.
// Multiple partitions share one node, so entries are refcounted: the
// address is only forgotten once every partition referencing that node
// has been closed.
type nodeResolver struct {
	mu    sync.RWMutex
	nodes map[uint64]*nodeRef
}

func newNodeResolver() *nodeResolver {
	return &nodeResolver{nodes: make(map[uint64]*nodeRef)}
}

func (r *nodeResolver) add(id uint64, addr metapb.HostAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.nodes[id]; ok {
		ref.refCount++
		return
	}
	r.nodes[id] = &nodeRef{addr: addr, refCount: 1}
}

func (r *nodeResolver) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.nodes[id]; ok {
		ref.refCount--
		if ref.refCount <= 0 {
			delete(r.nodes, id)
		}
	}
}

func (r *nodeResolver) resolve(id uint64) metapb.HostAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ref, ok := r.nodes[id]; ok {
		return ref.addr
	}
	return metapb.HostAddr{}
}

var _ raft.SocketResolver = (*nodeResolver)(nil)

// NodeAddress implements raft.SocketResolver: the raft transport's
// heartbeat and replicate ports are the node's RPC port offset by a
// fixed amount, so no additional per-node configuration is needed.
func (r *nodeResolver) NodeAddress(nodeID uint64, stype raft.SocketType) (string, error) {
	addr := r.resolve(nodeID)
	if addr.IsZero() {
		return "", fmt.Errorf("server: no address registered for raft node %d", nodeID)
	}
	switch stype {
	case raft.HeartBeat:
		return fmt.Sprintf("%s:%d", addr.Host, addr.Port+heartbeatPortOffset), nil
	case raft.Replicate:
		return fmt.Sprintf("%s:%d", addr.Host, addr.Port+replicatePortOffset), nil
	default:
		return "", fmt.Errorf("server: unknown raft socket type %v", stype)
	}
}
