// Package grpc wraps dialing conventions shared by the meta and storage
// daemons: keepalive-tuned client connections that refuse to serve traffic
// until a cluster-id handshake against the remote has succeeded.
package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/baudgraph/graphd/util/grpc/heartbeat"
)

var keepaliveParams = keepalive.ClientParameters{
	Time:                10 * time.Second,
	Timeout:             3 * time.Second,
	PermitWithoutStream: true,
}

// ErrClusterMismatch is returned when the remote's cluster id does not
// match the one we were configured with.
var ErrClusterMismatch = fmt.Errorf("grpc: remote cluster id mismatch")

// Dial connects to addr and blocks until a cluster-id heartbeat against it
// has succeeded, so callers never hand out a connection to the wrong
// cluster.
func Dial(ctx context.Context, addr string, clusterID uint64) (*grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, addr,
		grpc.WithInsecure(),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepaliveParams),
		DialCodecOption(),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc: dial %s: %w", addr, err)
	}

	if err := checkClusterID(ctx, conn, clusterID); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// checkClusterID round-trips a heartbeat.Ping and rejects the
// connection on mismatch, so a misconfigured peer is caught at dial
// time rather than on the first real request.
func checkClusterID(ctx context.Context, conn *grpc.ClientConn, clusterID uint64) error {
	resp, err := heartbeat.NewHeartbeatClient(conn).Ping(ctx, &heartbeat.PingRequest{ClusterId: clusterID, Ping: "hello"})
	if err != nil {
		return fmt.Errorf("grpc: cluster heartbeat: %w", err)
	}
	if resp.ClusterId != clusterID {
		return ErrClusterMismatch
	}
	return nil
}
