// Package raftstore is the concrete C2 replicated KV store: one raft
// group and one badger engine per partition, submitting every mutation
// as a proposed command and serving reads straight out of the local
// engine (followers included).
package raftstore

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tiglabs/raft"
	raftproto "github.com/tiglabs/raft/proto"
	"github.com/tiglabs/raft/storage/wal"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/storage/engine"
	"github.com/baudgraph/graphd/util/json"
	"github.com/baudgraph/graphd/util/log"
)

var ErrPartitionClosed = errors.New("raftstore: partition closed")

// Store is one partition's raft-replicated state machine.
type Store struct {
	space metapb.SpaceID
	part  metapb.PartID
	id    uint64 // raft group id, derived 1:1 from (space, part)

	raftServer *raft.RaftServer
	engine     *engine.Engine

	mu     sync.RWMutex
	leader uint64
	closed bool

	resolve func(nodeID uint64) metapb.HostAddr
}

// Open starts the raft group backing one partition. walPath and
// dataPath are distinct directories: the raft log and the applied
// state live on independent append paths so a snapshot can truncate
// one without touching the other.
func Open(raftServer *raft.RaftServer, groupID uint64, space metapb.SpaceID, part metapb.PartID,
	dataPath, walPath string, peers []raftproto.Peer, applied uint64,
	resolve func(nodeID uint64) metapb.HostAddr) (*Store, error) {

	eng, err := engine.Open(dataPath)
	if err != nil {
		return nil, err
	}

	raftStore, err := wal.NewStorage(walPath, nil)
	if err != nil {
		eng.Close()
		return nil, err
	}

	s := &Store{
		space:      space,
		part:       part,
		id:         groupID,
		raftServer: raftServer,
		engine:     eng,
		resolve:    resolve,
	}

	raftConf := &raft.RaftConfig{
		ID:           groupID,
		Applied:      applied,
		Peers:        peers,
		Storage:      raftStore,
		StateMachine: s,
	}
	if err := raftServer.CreateRaft(raftConf); err != nil {
		eng.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.raftServer.RemoveRaft(s.id)
	return s.engine.Close()
}

// ---- kv.AsyncStore, for this partition only ----

func (s *Store) AsyncMultiPut(ctx context.Context, kvs []kv.KVPair, cb kv.PutCallback) {
	s.submit(ctx, &command{Type: cmdPut, Puts: toStoragepbPairs(kvs)}, cb)
}

func (s *Store) AsyncMultiRemove(ctx context.Context, keys [][]byte, cb kv.RemoveCallback) {
	s.submit(ctx, &command{Type: cmdRemove, Keys: keys}, cb)
}

func (s *Store) AsyncRemoveRange(ctx context.Context, start, end []byte, cb kv.RemoveCallback) {
	s.submit(ctx, &command{Type: cmdRemoveRange, RangeStart: start, RangeEnd: end}, cb)
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	return s.engine.Get(key)
}

func (s *Store) Scan(ctx context.Context, start, end []byte) (kv.Iterator, error) {
	return &scanIterator{it: s.engine.Scan(start, end)}, nil
}

// Leader returns the locally observed leader, the zero HostAddr before
// the first election completes.
func (s *Store) Leader() metapb.HostAddr {
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
		log.Error("raftstore: encode command: %s", err)
		cb(storagepb.ResultUnknown)
		return
	}

	future := s.raftServer.Submit(s.id, data)
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

// translateRaftError implements the fixed raft-error -> ResultCode
// table: not-leader and no-leader both surface as LeaderChanged so the
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
		kvs := make([]engine.KVPair, len(c.Puts))
		for i, p := range c.Puts {
			kvs[i] = engine.KVPair{Key: p.Key, Value: p.Value}
		}
		if err := s.engine.ApplyPuts(kvs); err != nil {
			return nil, err
		}
	case cmdRemove:
		if err := s.engine.ApplyRemoves(c.Keys); err != nil {
			return nil, err
		}
	case cmdRemoveRange:
		if err := s.engine.ApplyRemoveRange(c.RangeStart, c.RangeEnd); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("raftstore: unknown command type")
	}
	return nil, nil
}

func (s *Store) ApplyMemberChange(confChange *raftproto.ConfChange, index uint64) (interface{}, error) {
	return nil, nil
}

func (s *Store) Snapshot() (raftproto.Snapshot, error) {
	return &partitionSnapshot{it: s.engine.Scan(nil, nil)}, nil
}

func (s *Store) ApplySnapshot(peers []raftproto.Peer, iter raftproto.SnapIterator) error {
	var kvs []engine.KVPair
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
		kvs = append(kvs, engine.KVPair{Key: pair.Key, Value: pair.Value})
	}
	return s.engine.ApplyPuts(kvs)
}

func (s *Store) HandleLeaderChange(leader uint64) {
	s.mu.Lock()
	s.leader = leader
	s.mu.Unlock()
	log.Info("raftstore: partition (%d,%d) leader changed to %d", s.space, s.part, leader)
}

func (s *Store) HandleFatalEvent(err *raft.FatalError) {
	log.Error("raftstore: partition (%d,%d) fatal error: %v", s.space, s.part, err.Err)
}

// ---- snapshot plumbing ----

type partitionSnapshot struct {
	it         *engine.Iterator
	applyIndex uint64
}

func (s *partitionSnapshot) Next() ([]byte, error) {
	if !s.it.Next() {
		if err := s.it.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	pair := storagepb.KVPair{Key: s.it.Key(), Value: s.it.Value()}
	return json.Marshal(pair)
}

func (s *partitionSnapshot) ApplyIndex() uint64 { return s.applyIndex }

func (s *partitionSnapshot) Close() { s.it.Close() }

type scanIterator struct {
	it *engine.Iterator
}

func (i *scanIterator) Next() bool       { return i.it.Next() }
func (i *scanIterator) Key() []byte      { return i.it.Key() }
func (i *scanIterator) Value() []byte    { return i.it.Value() }
func (i *scanIterator) Bookmark() []byte { return i.it.Bookmark() }
func (i *scanIterator) Err() error       { return i.it.Err() }
func (i *scanIterator) Close()           { i.it.Close() }
