package heartbeat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

type clusterIDReq struct {
	id uint64
}

func (r clusterIDReq) GetClusterID() uint64 { return r.id }

func TestVerifyClusterIDAcceptsMatch(t *testing.T) {
	interceptor := VerifyClusterID(42)
	resp, err := interceptor(context.Background(), clusterIDReq{id: 42}, &grpc.UnaryServerInfo{FullMethod: "/M/F"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestVerifyClusterIDRejectsMismatch(t *testing.T) {
	interceptor := VerifyClusterID(42)
	_, err := interceptor(context.Background(), clusterIDReq{id: 7}, &grpc.UnaryServerInfo{FullMethod: "/M/F"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			t.Fatal("handler must not run on a cluster id mismatch")
			return nil, nil
		})
	require.Error(t, err)
}

func TestVerifyClusterIDPassesThroughUncarryingRequests(t *testing.T) {
	interceptor := VerifyClusterID(42)
	resp, err := interceptor(context.Background(), struct{}{}, &grpc.UnaryServerInfo{FullMethod: "/M/F"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}
