package meta

import (
	"github.com/pkg/errors"
	"github.com/tiglabs/raft"
	raftproto "github.com/tiglabs/raft/proto"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/meta/raftstore"
	"github.com/baudgraph/graphd/proto/metapb"
)

// OpenStore builds the meta raft group's transport and state machine
// and returns it as the kv.AsyncStore every other meta component (the
// cluster identity bootstrap, the meta service, the RPC surface) is
// built against. peers is every meta replica including self; a
// single-entry list bootstraps a one-node cluster.
func OpenStore(self metapb.HostAddr, dataDir string, peers []metapb.HostAddr) (kv.AsyncStore, error) {
	resolver := newNodeResolver()
	for _, p := range peers {
		resolver.add(nodeID(p), p)
	}
	if len(peers) == 0 {
		resolver.add(nodeID(self), self)
	}

	rc := raft.DefaultConfig()
	rc.NodeID = nodeID(self)
	rc.Resolver = resolver
	heartbeatAddr, err := resolver.NodeAddress(rc.NodeID, raft.HeartBeat)
	if err != nil {
		return nil, err
	}
	replicateAddr, err := resolver.NodeAddress(rc.NodeID, raft.Replicate)
	if err != nil {
		return nil, err
	}
	rc.HeartbeatAddr = heartbeatAddr
	rc.ReplicateAddr = replicateAddr

	raftServer, err := raft.NewRaftServer(rc)
	if err != nil {
		return nil, errors.Wrap(err, "meta: failed to start raft transport")
	}

	raftPeers := make([]raftproto.Peer, 0, len(peers)+1)
	seen := false
	for _, p := range peers {
		raftPeers = append(raftPeers, raftproto.Peer{Type: raftproto.PeerNormal, ID: nodeID(p)})
		if p == self {
			seen = true
		}
	}
	if !seen {
		raftPeers = append(raftPeers, raftproto.Peer{Type: raftproto.PeerNormal, ID: rc.NodeID})
	}

	return raftstore.Open(raftServer, dataDir, raftPeers, resolver.resolve)
}
