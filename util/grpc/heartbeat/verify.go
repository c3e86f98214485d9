package heartbeat

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// ClusterIDCarrier is implemented by any request that embeds the
// dialing side's cluster id, so VerifyClusterID can check it before the
// request reaches its handler.
type ClusterIDCarrier interface {
	GetClusterID() uint64
}

// VerifyClusterID builds a unary interceptor that rejects any request
// whose embedded cluster id disagrees with clusterID. Requests that
// don't carry one (PingRequest handles its own check; ClusterIDRequest
// has none to carry yet) pass through unchecked.
func VerifyClusterID(clusterID uint64) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		carrier, ok := req.(ClusterIDCarrier)
		if !ok {
			return handler(ctx, req)
		}
		if reqClusterID := carrier.GetClusterID(); reqClusterID != clusterID {
			return nil, fmt.Errorf("%s: client cluster_id(%d) doesn't match server cluster_id(%d)", info.FullMethod, reqClusterID, clusterID)
		}
		return handler(ctx, req)
	}
}
