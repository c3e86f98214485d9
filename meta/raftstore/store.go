// Package raftstore is the meta daemon's replicated store: a single
// raft group, backed by a bolt-kv engine rather than the badger engine
// the storage daemon's partitions use. The meta partition is always
// (space=0, part=0) and never splits, so one group and one bolt file
// is enough for the whole daemon's lifetime.
package raftstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"

	"github.com/tiglabs/raft"
	raftproto "github.com/tiglabs/raft/proto"
	"github.com/tiglabs/raft/storage/wal"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/util/json"
	"github.com/baudgraph/graphd/util/log"
	"github.com/baudgraph/graphd/util/raftkvstore"
)

// FixedGroupID is the raft group id of the meta partition. There is
// exactly one meta group per cluster, so unlike the storage daemon's
// per-(space,part) groups this id never varies.
const FixedGroupID = 1

var (
	raftBucket = []byte("MetaRaftBucket")
	dbBucket   = []byte("MetaDbBucket")
)

var _ kv.AsyncStore = (*Store)(nil)

// Store is the meta partition's raft-replicated state machine. It
// satisfies kv.AsyncStore directly: every call is asserted against the
// fixed (MetaSpaceID, MetaPartID) pair rather than routed by a
// partition manager, since the meta daemon never hosts more than one.
type Store struct {
	raftServer *raft.RaftServer
	engine     raftkvstore.Store

	mu     sync.RWMutex
	leader uint64

	resolve func(nodeID uint64) metapb.HostAddr
}

// Open starts the meta raft group. dataDir holds both the bolt file
// (dataDir/meta.bolt) and the raft write-ahead log (the dataDir/raft-wal
// subdirectory), kept apart so a snapshot can truncate the log without
// touching the applied state.
func Open(raftServer *raft.RaftServer, dataDir string, peers []raftproto.Peer, resolve func(nodeID uint64) metapb.HostAddr) (*Store, error) {
	eng, applied, err := raftkvstore.NewBoltStore(dbBucket, raftBucket, filepath.Join(dataDir, "meta.bolt"))
	if err != nil {
		return nil, err
	}

	walStore, err := wal.NewStorage(filepath.Join(dataDir, "raft-wal"), nil)
	if err != nil {
		eng.Close()
		return nil, err
	}

	s := &Store{
		raftServer: raftServer,
		engine:     eng,
		resolve:    resolve,
	}

	raftConf := &raft.RaftConfig{
		ID:           FixedGroupID,
		Applied:      applied,
		Peers:        peers,
		Storage:      walStore,
		StateMachine: s,
	}
	if err := raftServer.CreateRaft(raftConf); err != nil {
		eng.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.raftServer.RemoveRaft(FixedGroupID)
	return s.engine.Close()
}

func assertMetaPartition(space metapb.SpaceID, part metapb.PartID) error {
	if space != metapb.MetaSpaceID || part != metapb.MetaPartID {
		return &errWrongPartition{space: space, part: part}
	}
	return nil
}

type errWrongPartition struct {
	space metapb.SpaceID
	part  metapb.PartID
}

func (e *errWrongPartition) Error() string {
	return "meta/raftstore: the meta partition only serves (0,0), not the requested partition"
}

// ---- kv.AsyncStore ----

func (s *Store) AsyncMultiPut(ctx context.Context, space metapb.SpaceID, part metapb.PartID, kvs []kv.KVPair, cb kv.PutCallback) {
	if err := assertMetaPartition(space, part); err != nil {
		cb(storagepb.ResultPartNotFound)
		return
	}
	s.submit(ctx, &command{Type: cmdPut, Puts: toStoragepbPairs(kvs)}, cb)
}

func (s *Store) AsyncMultiRemove(ctx context.Context, space metapb.SpaceID, part metapb.PartID, keys [][]byte, cb kv.RemoveCallback) {
	if err := assertMetaPartition(space, part); err != nil {
		cb(storagepb.ResultPartNotFound)
		return
	}
	s.submit(ctx, &command{Type: cmdRemove, Keys: keys}, cb)
}

func (s *Store) AsyncRemoveRange(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte, cb kv.RemoveCallback) {
	if err := assertMetaPartition(space, part); err != nil {
		cb(storagepb.ResultPartNotFound)
		return
	}
	s.submit(ctx, &command{Type: cmdRemoveRange, RangeStart: start, RangeEnd: end}, cb)
}

func (s *Store) Get(ctx context.Context, space metapb.SpaceID, part metapb.PartID, key []byte) ([]byte, bool, error) {
	if err := assertMetaPartition(space, part); err != nil {
		return nil, false, err
	}
	v, err := s.engine.Get(key)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (s *Store) Scan(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte) (kv.Iterator, error) {
	if err := assertMetaPartition(space, part); err != nil {
		return nil, err
	}
	return &scanIterator{it: s.engine.NewIterator(start, end)}, nil
}

func (s *Store) PartLeader(space metapb.SpaceID, part metapb.PartID) (metapb.HostAddr, error) {
	if err := assertMetaPartition(space, part); err != nil {
		return metapb.HostAddr{}, err
	}
	return s.leaderAddr(), nil
}

func (s *Store) leaderAddr() metapb.HostAddr {
	s.mu.RLock()
	leader := s.leader
	s.mu.RUnlock()
	if leader == 0 {
		return metapb.HostAddr{}
	}
	return s.resolve(leader)
}

func (s *Store) submit(ctx context.Context, c *command, cb func(storagepb.ResultCode)) {
	data, err := encodeCommand(c)
	if err != nil {
		log.Error("meta/raftstore: encode command: %s", err)
		cb(storagepb.ResultUnknown)
		return
	}

	future := s.raftServer.Submit(FixedGroupID, data)
	respCh, errCh := future.AsyncResponse()

	go func() {
		select {
		case <-respCh:
			cb(storagepb.ResultSucceeded)
		case err := <-errCh:
			cb(translateRaftError(err))
		case <-ctx.Done():
			cb(storagepb.ResultUnknown)
		}
	}()
}

// translateRaftError mirrors the storage daemon's raft-error table: a
// leaderless or stale-leader submit surfaces as LeaderChanged so the
// caller retries against whoever PartLeader now reports.
func translateRaftError(err error) storagepb.ResultCode {
	switch err {
	case raft.ErrNotLeader, raft.ErrRaftNotExists:
		return storagepb.ResultLeaderChanged
	case raft.ErrStopped:
		return storagepb.ResultConsensusError
	case context.DeadlineExceeded:
		return storagepb.ResultConsensusError
	default:
		return storagepb.ResultUnknown
	}
}

func toStoragepbPairs(kvs []kv.KVPair) []storagepb.KVPair {
	out := make([]storagepb.KVPair, len(kvs))
	for i, p := range kvs {
		out[i] = storagepb.KVPair{Key: p.Key, Value: p.Value}
	}
	return out
}

// ---- raft.StateMachine ----

func (s *Store) Apply(data []byte, index uint64) (interface{}, error) {
	c, err := decodeCommand(data)
	if err != nil {
		return nil, err
	}

	switch c.Type {
	case cmdPut:
		batch := s.engine.NewWriteBatch()
		for _, p := range c.Puts {
			batch.Put(p.Key, p.Value, index)
		}
		if err := batch.Commit(); err != nil {
			return nil, err
		}
	case cmdRemove:
		batch := s.engine.NewWriteBatch()
		for _, k := range c.Keys {
			batch.Delete(k, index)
		}
		if err := batch.Commit(); err != nil {
			return nil, err
		}
	case cmdRemoveRange:
		if err := s.applyRemoveRange(c.RangeStart, c.RangeEnd, index); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("meta/raftstore: unknown command type")
	}
	return nil, nil
}

// applyRemoveRange has no direct bolt equivalent: it collects every key
// in [start, end) with a read iterator, then deletes them in one write
// batch so the range removal is still applied atomically.
func (s *Store) applyRemoveRange(start, end []byte, index uint64) error {
	it := s.engine.NewIterator(start, end)
	defer it.Release()

	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	if err := it.Error(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	batch := s.engine.NewWriteBatch()
	for _, k := range keys {
		batch.Delete(k, index)
	}
	return batch.Commit()
}

func (s *Store) ApplyMemberChange(confChange *raftproto.ConfChange, index uint64) (interface{}, error) {
	return nil, nil
}

func (s *Store) Snapshot() (raftproto.Snapshot, error) {
	snap, err := s.engine.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &metaSnapshot{snap: snap, it: snap.NewIterator(nil, nil)}, nil
}

func (s *Store) ApplySnapshot(peers []raftproto.Peer, iter raftproto.SnapIterator) error {
	batch := s.engine.NewWriteBatch()
	for {
		data, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		pair := &storagepb.KVPair{}
		if err := json.Unmarshal(data, pair); err != nil {
			return err
		}
		batch.Put(pair.Key, pair.Value, 0)
	}
	return batch.Commit()
}

func (s *Store) HandleLeaderChange(leader uint64) {
	s.mu.Lock()
	s.leader = leader
	s.mu.Unlock()
	log.Info("meta/raftstore: leader changed to %d", leader)
}

func (s *Store) HandleFatalEvent(err *raft.FatalError) {
	log.Error("meta/raftstore: fatal error: %v", err.Err)
}

// ---- snapshot and scan plumbing ----

type metaSnapshot struct {
	snap raftkvstore.Snapshot
	it   raftkvstore.Iterator
}

func (s *metaSnapshot) Next() ([]byte, error) {
	if !s.it.Next() {
		if err := s.it.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	pair := storagepb.KVPair{Key: s.it.Key(), Value: s.it.Value()}
	return json.Marshal(pair)
}

func (s *metaSnapshot) ApplyIndex() uint64 { return s.snap.ApplyIndex() }

func (s *metaSnapshot) Close() {
	s.it.Release()
	s.snap.Release()
}

type scanIterator struct {
	it raftkvstore.Iterator
}

func (i *scanIterator) Next() bool       { return i.it.Next() }
func (i *scanIterator) Key() []byte      { return i.it.Key() }
func (i *scanIterator) Value() []byte    { return i.it.Value() }
func (i *scanIterator) Bookmark() []byte { return i.it.Key() }
func (i *scanIterator) Err() error       { return i.it.Error() }
func (i *scanIterator) Close()           { i.it.Release() }
