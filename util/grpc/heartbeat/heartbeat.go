// Package heartbeat implements the cluster-id handshake every inter-daemon
// grpc connection performs before it is handed out for real traffic.
package heartbeat

import (
	"context"
	"fmt"
)

// PingRequest is sent by the dialing side on every new connection.
type PingRequest struct {
	ClusterId uint64
	Ping      string
}

// PingResponse echoes the ping back once the cluster id has been checked.
type PingResponse struct {
	ClusterId uint64
	Pong      string
}

// Service exposes Ping for the grpc connection-level cluster-id guard
// described for every RPC surface (storage<->meta, client<->storage).
type Service struct {
	ClusterID uint64
}

// Ping rejects the request if the caller's cluster id does not match ours.
func (hs *Service) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	if req.ClusterId != hs.ClusterID {
		return nil, fmt.Errorf("client cluster_id(%d) doesn't match server cluster_id(%d)", req.ClusterId, hs.ClusterID)
	}
	return &PingResponse{
		Pong:      req.Ping,
		ClusterId: hs.ClusterID,
	}, nil
}
