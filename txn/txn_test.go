package txn

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
)

type fakeStore struct{}

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
	return metapb.HostAddr{}, nil
}

type fakeTxnMan struct {
	mu      sync.Mutex
	calls   []Chain
	results map[Chain]storagepb.ResultCode
}

func (f *fakeTxnMan) AddSamePartEdges(vidLen int, space metapb.SpaceID, chain Chain, edges []EncodedEdge, indexes IndexWriter) storagepb.ResultCode {
	f.mu.Lock()
	f.calls = append(f.calls, chain)
	f.mu.Unlock()
	if code, ok := f.results[chain]; ok {
		return code
	}
	return storagepb.ResultSucceeded
}

func fixedVidLen(n int) VidLenResolver {
	return func(space metapb.SpaceID) (int, bool) { return n, true }
}

func hashPart(parts map[string]metapb.PartID) PartResolver {
	return func(space metapb.SpaceID, vid []byte) (metapb.PartID, error) {
		return parts[string(vid)], nil
	}
}

func noopEncode() Encoder {
	return func(space metapb.SpaceID, edgeType int32, propNames []string, props [][]byte) ([]byte, storagepb.ErrorCode) {
		return []byte("v"), storagepb.ErrSucceeded
	}
}

func req(local metapb.PartID, dst []byte) *storagepb.AddEdgesRequest {
	return &storagepb.AddEdgesRequest{
		SpaceID: 1,
		Parts: map[metapb.PartID][]storagepb.NewEdge{
			local: {{Key: storagepb.EdgeKey{Src: []byte("A"), EdgeType: 5, Rank: 0, Dst: dst}}},
		},
	}
}

func TestWriterGroupsByChain(t *testing.T) {
	txnMan := &fakeTxnMan{}
	w := NewWriter(&fakeStore{}, txnMan, fixedVidLen(8), hashPart(map[string]metapb.PartID{"B": 2}), noopEncode(), nil)

	resp := w.Write(req(1, []byte("B")))
	require.True(t, resp.Succeeded())
	require.Equal(t, []Chain{{Local: 1, Remote: 2}}, txnMan.calls)
}

func TestWriterChainFailureReported(t *testing.T) {
	txnMan := &fakeTxnMan{results: map[Chain]storagepb.ResultCode{{Local: 1, Remote: 2}: storagepb.ResultConsensusError}}
	w := NewWriter(&fakeStore{}, txnMan, fixedVidLen(8), hashPart(map[string]metapb.PartID{"B": 2}), noopEncode(), nil)

	resp := w.Write(req(1, []byte("B")))
	require.False(t, resp.Succeeded())
	require.Len(t, resp.Failures, 1)
	require.Equal(t, metapb.PartID(1), resp.Failures[0].PartID)
	require.Equal(t, storagepb.ErrConsensusError, resp.Failures[0].Code)
}

func TestWriterAbortsOnVidLenFailure(t *testing.T) {
	txnMan := &fakeTxnMan{}
	unresolved := func(space metapb.SpaceID) (int, bool) { return 0, false }
	w := NewWriter(&fakeStore{}, txnMan, unresolved, hashPart(nil), noopEncode(), nil)

	resp := w.Write(req(1, []byte("B")))
	require.False(t, resp.Succeeded())
	require.Equal(t, storagepb.ErrInvalidSpaceVidLen, resp.Failures[0].Code)
	require.Empty(t, txnMan.calls)
}

func TestWriterAbortsOnEncodeFailure(t *testing.T) {
	txnMan := &fakeTxnMan{}
	failEncode := func(space metapb.SpaceID, edgeType int32, propNames []string, props [][]byte) ([]byte, storagepb.ErrorCode) {
		return nil, storagepb.ErrDataTypeMismatch
	}
	w := NewWriter(&fakeStore{}, txnMan, fixedVidLen(8), hashPart(map[string]metapb.PartID{"B": 2}), failEncode, nil)

	resp := w.Write(req(1, []byte("B")))
	require.False(t, resp.Succeeded())
	require.Equal(t, storagepb.ErrDataTypeMismatch, resp.Failures[0].Code)
}

func TestWriterJoinsMultipleChains(t *testing.T) {
	txnMan := &fakeTxnMan{}
	w := NewWriter(&fakeStore{}, txnMan, fixedVidLen(8), hashPart(map[string]metapb.PartID{"B": 2, "C": 3}), noopEncode(), nil)

	multi := &storagepb.AddEdgesRequest{
		SpaceID: 1,
		Parts: map[metapb.PartID][]storagepb.NewEdge{
			1: {{Key: storagepb.EdgeKey{Src: []byte("A"), EdgeType: 5, Dst: []byte("B")}}},
			4: {{Key: storagepb.EdgeKey{Src: []byte("A"), EdgeType: 5, Dst: []byte("C")}}},
		},
	}

	got := w.Write(multi)
	require.True(t, got.Succeeded())
	require.Len(t, txnMan.calls, 2)
}
