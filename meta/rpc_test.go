package meta

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/proto/metapb"
)

func newTestServer(t *testing.T) (*Server, *fakeMetaStore) {
	t.Helper()
	leader := metapb.HostAddr{Host: "m1", Port: 1}
	store := newFakeMetaStore(leader)
	svc := NewService(store, NewClusterIdentity(store, leader))
	return NewServer(store, NewClusterIdentity(store, leader), svc, 30*time.Second), store
}

func TestServerHeartbeatRegistersParts(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	addr := metapb.HostAddr{Host: "storage1", Port: 7000}
	req := &HeartbeatRequest{
		ClusterID: srv.identity.ID(),
		Addr:      addr,
		Stats:     metapb.NodeSysStats{CPUCount: 4},
		Parts:     []metapb.PartitionStat{{Space: 1, Part: 1}, {Space: 1, Part: 2}},
	}
	_, err := srv.Heartbeat(ctx, req)
	require.NoError(t, err)

	listResp, err := srv.ListParts(ctx, &ListPartsRequest{Space: 1})
	require.NoError(t, err)
	require.ElementsMatch(t, []metapb.PartID{1, 2}, listResp.Parts)

	allocResp, err := srv.GetPartsAlloc(ctx, &GetPartsAllocRequest{Space: 1})
	require.NoError(t, err)
	require.True(t, allocResp.Found)
	for _, p := range allocResp.Alloc.Parts {
		require.Contains(t, p.Peers, addr)
	}
}

func TestServerHeartbeatDeduplicatesPeers(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	addr := metapb.HostAddr{Host: "storage1", Port: 7000}
	req := &HeartbeatRequest{
		ClusterID: srv.identity.ID(),
		Addr:      addr,
		Parts:     []metapb.PartitionStat{{Space: 1, Part: 1}},
	}
	_, err := srv.Heartbeat(ctx, req)
	require.NoError(t, err)
	_, err = srv.Heartbeat(ctx, req)
	require.NoError(t, err)

	allocResp, err := srv.GetPartsAlloc(ctx, &GetPartsAllocRequest{Space: 1})
	require.NoError(t, err)
	require.Len(t, allocResp.Alloc.Parts[0].Peers, 1)
}

func TestServerListPartsUnknownSpace(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := srv.ListParts(ctx, &ListPartsRequest{Space: 99})
	require.NoError(t, err)
	require.Empty(t, resp.Parts)
}

func TestServerGetClusterID(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := srv.GetClusterID(context.Background(), &ClusterIDRequest{})
	require.NoError(t, err)
	require.Equal(t, srv.identity.ID(), resp.ClusterID)
}
