package processor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
)

type fakeStore struct {
	leaders map[metapb.PartID]metapb.HostAddr
}

func (f *fakeStore) AsyncMultiPut(ctx context.Context, space metapb.SpaceID, part metapb.PartID, kvs []kv.KVPair, cb kv.PutCallback) {
}
func (f *fakeStore) AsyncMultiRemove(ctx context.Context, space metapb.SpaceID, part metapb.PartID, keys [][]byte, cb kv.RemoveCallback) {
}
func (f *fakeStore) AsyncRemoveRange(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte, cb kv.RemoveCallback) {
}
func (f *fakeStore) Get(ctx context.Context, space metapb.SpaceID, part metapb.PartID, key []byte) ([]byte, bool, error) {
	return nil, false, nil
}
func (f *fakeStore) Scan(ctx context.Context, space metapb.SpaceID, part metapb.PartID, start, end []byte) (kv.Iterator, error) {
	return nil, nil
}
func (f *fakeStore) PartLeader(space metapb.SpaceID, part metapb.PartID) (metapb.HostAddr, error) {
	return f.leaders[part], nil
}

func TestBaseOnFinishedCalledExactlyOnce(t *testing.T) {
	var calls int
	var mu sync.Mutex
	store := &fakeStore{}

	b := NewBase(store, 5, func(failures []storagepb.PartitionResult) {
		mu.Lock()
		calls++
		mu.Unlock()
		require.Empty(t, failures)
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.PushResultCode(0, 1, storagepb.ResultSucceeded)
			b.Arrive()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, calls)
}

func TestBaseReportsOnlyFailures(t *testing.T) {
	store := &fakeStore{leaders: map[metapb.PartID]metapb.HostAddr{7: {Host: "H", Port: 100}}}

	var got []storagepb.PartitionResult
	b := NewBase(store, 3, func(failures []storagepb.PartitionResult) {
		got = failures
	})

	b.PushResultCode(0, 1, storagepb.ResultSucceeded)
	b.Arrive()
	b.PushResultCode(0, 7, storagepb.ResultLeaderChanged)
	b.Arrive()
	b.PushResultCode(0, 3, storagepb.ResultConsensusError)
	b.Arrive()

	require.Len(t, got, 2)
	for _, r := range got {
		if r.PartID == 7 {
			require.Equal(t, storagepb.ErrLeaderChanged, r.Code)
			require.NotNil(t, r.Leader)
			require.Equal(t, "H", r.Leader.Host)
		} else {
			require.Equal(t, storagepb.ErrConsensusError, r.Code)
		}
	}
}
