package server

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/baudgraph/graphd/meta"
	"github.com/baudgraph/graphd/proto/metapb"
)

type fakeMetaClient struct {
	meta.MetaClient
	gotHeartbeats []*meta.HeartbeatRequest
}

func (f *fakeMetaClient) Heartbeat(ctx context.Context, req *meta.HeartbeatRequest, opts ...grpc.CallOption) (*meta.HeartbeatResponse, error) {
	f.gotHeartbeats = append(f.gotHeartbeats, req)
	return &meta.HeartbeatResponse{}, nil
}

func TestHeartbeatWorkSendReportsStats(t *testing.T) {
	self := metapb.HostAddr{Host: "storage1", Port: 7000}
	store := &Store{pm: NewPartitionManager()}
	stats := NewSysStatsCollector(".")

	client := &fakeMetaClient{}
	hw := &HeartbeatWork{
		self:      self,
		clusterID: 7,
		interval:  time.Second,
		store:     store,
		stats:     stats,
		dial: func() (meta.MetaClient, func(), error) {
			return client, func() {}, nil
		},
	}

	require.NoError(t, hw.send(context.Background()))
	require.Len(t, client.gotHeartbeats, 1)
	require.Equal(t, self, client.gotHeartbeats[0].Addr)
	require.Equal(t, uint64(7), client.gotHeartbeats[0].ClusterID)
	require.Equal(t, uint32(runtime.NumCPU()), client.gotHeartbeats[0].Stats.CPUCount)
	require.Empty(t, client.gotHeartbeats[0].Parts)
}

func TestHeartbeatWorkLocalPartsTracksPartitionManager(t *testing.T) {
	store := &Store{pm: NewPartitionManager()}
	require.NoError(t, store.pm.AddPart(1, 0, nil))
	require.NoError(t, store.pm.AddPart(1, 1, nil))

	hw := &HeartbeatWork{store: store}
	parts := hw.localParts()
	require.ElementsMatch(t, []metapb.PartID{0, 1}, parts[1])
}
