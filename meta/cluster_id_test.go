package meta

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
)

type fakeMetaStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	leader metapb.HostAddr
}

func newFakeMetaStore(leader metapb.HostAddr) *fakeMetaStore {
	return &fakeMetaStore{data: make(map[string][]byte), leader: leader}
}

func (f *fakeMetaStore) AsyncMultiPut(ctx context.Context, space metapb.SpaceID, part metapb.PartID, kvs []kv.KVPair, cb kv.PutCallback) {
	f.mu.Lock()
	for _, p := range kvs {
		f.data[string(p.Key)] = p.Value
	}
	f.mu.Unlock()
	go cb(storagepb.ResultSucceeded)
}
func (f *fakeMetaStore) AsyncMultiRemove(ctx context.Context, space metapb.SpaceID, part metapb.PartID, keys [][]byte, cb kv.RemoveCallback) {
}
func (f *fakeMetaStore) AsyncRemoveRange(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte, cb kv.RemoveCallback) {
}
func (f *fakeMetaStore) Get(ctx context.Context, space metapb.SpaceID, part metapb.PartID, key []byte) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[string(key)]
	return v, ok, nil
}
func (f *fakeMetaStore) Scan(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte) (kv.Iterator, error) {
	return nil, nil
}
func (f *fakeMetaStore) PartLeader(space metapb.SpaceID, part metapb.PartID) (metapb.HostAddr, error) {
	return f.leader, nil
}

func TestClusterIdentityLeaderSeeds(t *testing.T) {
	leader := metapb.HostAddr{Host: "m1", Port: 1}
	store := newFakeMetaStore(leader)
	ci := NewClusterIdentity(store, leader)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ci.Bootstrap(ctx, []string{"m1:1", "m2:2"}))
	require.NotZero(t, ci.ID())

	val, ok, _ := store.Get(ctx, 0, 0, []byte(metapb.ReservedClusterIDKey))
	require.True(t, ok)
	require.Equal(t, ci.ID(), binary.BigEndian.Uint64(val))
}

func TestClusterIdentityFollowerAdoptsExisting(t *testing.T) {
	leader := metapb.HostAddr{Host: "m1", Port: 1}
	follower := metapb.HostAddr{Host: "m2", Port: 2}
	store := newFakeMetaStore(leader)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], 42)
	store.data[metapb.ReservedClusterIDKey] = buf[:]

	ci := NewClusterIdentity(store, follower)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ci.Bootstrap(ctx, nil))
	require.EqualValues(t, 42, ci.ID())
}

func TestDeriveClusterIDStableAndNonZero(t *testing.T) {
	id1 := DeriveClusterID([]string{"b:2", "a:1"})
	id2 := DeriveClusterID([]string{"a:1", "b:2"})
	require.Equal(t, id1, id2)
	require.NotZero(t, id1)
}
