// Package server is the storage daemon's top-level store: the C1
// partition manager plus one raft-replicated raftstore.Store per local
// partition, composed into a single kv.AsyncStore that every other
// storage-daemon component (processor, planner, atomic edge writer)
// depends on.
package server

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/tiglabs/raft"
	raftproto "github.com/tiglabs/raft/proto"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/storage/raftstore"
	"github.com/baudgraph/graphd/util/log"
)

var _ kv.AsyncStore = (*Store)(nil)

type partKey struct {
	space metapb.SpaceID
	part  metapb.PartID
}

// Store composes the partition manager with one raftstore.Store per
// local partition and routes every call on (space, part).
type Store struct {
	raftServer *raft.RaftServer
	pm         *PartitionManager
	resolver   *nodeResolver
	self       metapb.HostAddr
	dataDir    string

	mu         sync.RWMutex
	partitions map[partKey]*raftstore.Store
}

// NewStore builds the store's own raft transport (heartbeat/replicate
// listeners bound via the resolver's fixed port offsets) and wires it
// into a fresh Store. Every local partition raft group shares this one
// transport.
func NewStore(self metapb.HostAddr, dataDir string) (*Store, error) {
	resolver := newNodeResolver()
	resolver.add(nodeID(self), self)

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
		return nil, errors.Wrap(err, "server: failed to start raft transport")
	}

	return &Store{
		raftServer: raftServer,
		pm:         NewPartitionManager(),
		resolver:   resolver,
		self:       self,
		dataDir:    dataDir,
		partitions: make(map[partKey]*raftstore.Store),
	}, nil
}

// nodeID derives the raft-level numeric node id from a host's network
// identity. Two daemons never collide in practice because the hash is
// over the full host:port string, not just the host.
func nodeID(addr metapb.HostAddr) uint64 {
	h := fnv.New64a()
	h.Write([]byte(addr.String()))
	id := h.Sum64()
	if id == 0 {
		id = 1
	}
	return id
}

// OpenPartition registers (space, part) in the partition manager and,
// if self is one of peers, starts its local raft group. Calling it
// again with the same peers for an already-open partition is a no-op.
func (s *Store) OpenPartition(space metapb.SpaceID, part metapb.PartID, peers []metapb.HostAddr) error {
	if err := s.pm.AddPart(space, part, peers); err != nil {
		return err
	}

	key := partKey{space, part}
	s.mu.Lock()
	if _, ok := s.partitions[key]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	selfIsPeer := false
	raftPeers := make([]raftproto.Peer, 0, len(peers))
	for _, p := range peers {
		id := nodeID(p)
		s.resolver.add(id, p)
		raftPeers = append(raftPeers, raftproto.Peer{Type: raftproto.PeerNormal, ID: id})
		if p == s.self {
			selfIsPeer = true
		}
	}
	if !selfIsPeer {
		return nil
	}

	groupID := groupID(space, part)
	dataPath := filepath.Join(s.dataDir, "data", fmt.Sprintf("%d_%d", space, part))
	walPath := filepath.Join(s.dataDir, "raft", fmt.Sprintf("%d_%d", space, part))

	store, err := raftstore.Open(s.raftServer, groupID, space, part, dataPath, walPath, raftPeers, 0, s.resolver.resolve)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.partitions[key] = store
	s.mu.Unlock()
	log.Info("server: opened partition (%d,%d)", space, part)
	return nil
}

// groupID packs (space, part) into the single uint64 raft requires as a
// group identifier.
func groupID(space metapb.SpaceID, part metapb.PartID) uint64 {
	return uint64(space)<<32 | uint64(part)
}

func (s *Store) partition(space metapb.SpaceID, part metapb.PartID) (*raftstore.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partitions[partKey{space, part}]
	if !ok {
		return nil, &ErrPartNotFound{Space: space, Part: part}
	}
	return p, nil
}

// ---- kv.AsyncStore ----

func (s *Store) AsyncMultiPut(ctx context.Context, space metapb.SpaceID, part metapb.PartID, kvs []kv.KVPair, cb kv.PutCallback) {
	p, err := s.partition(space, part)
	if err != nil {
		cb(storagepb.ResultPartNotFound)
		return
	}
	p.AsyncMultiPut(ctx, kvs, cb)
}

func (s *Store) AsyncMultiRemove(ctx context.Context, space metapb.SpaceID, part metapb.PartID, keys [][]byte, cb kv.RemoveCallback) {
	p, err := s.partition(space, part)
	if err != nil {
		cb(storagepb.ResultPartNotFound)
		return
	}
	p.AsyncMultiRemove(ctx, keys, cb)
}

func (s *Store) AsyncRemoveRange(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte, cb kv.RemoveCallback) {
	p, err := s.partition(space, part)
	if err != nil {
		cb(storagepb.ResultPartNotFound)
		return
	}
	p.AsyncRemoveRange(ctx, start, end, cb)
}

func (s *Store) Get(ctx context.Context, space metapb.SpaceID, part metapb.PartID, key []byte) ([]byte, bool, error) {
	p, err := s.partition(space, part)
	if err != nil {
		return nil, false, err
	}
	return p.Get(ctx, key)
}

func (s *Store) Scan(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte) (kv.Iterator, error) {
	p, err := s.partition(space, part)
	if err != nil {
		return nil, err
	}
	return p.Scan(ctx, start, end)
}

func (s *Store) PartLeader(space metapb.SpaceID, part metapb.PartID) (metapb.HostAddr, error) {
	p, err := s.partition(space, part)
	if err != nil {
		return metapb.HostAddr{}, err
	}
	return p.Leader(), nil
}

// Parts and Peers expose the C1 partition directory directly, for the
// CLI and the meta-driven topology sync that creates partitions.
func (s *Store) Parts(space metapb.SpaceID) []metapb.PartID { return s.pm.Parts(space) }

func (s *Store) Peers(space metapb.SpaceID, part metapb.PartID) ([]metapb.HostAddr, error) {
	return s.pm.Peers(space, part)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for key, p := range s.partitions {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.partitions, key)
	}
	return firstErr
}
