package heartbeat

import (
	"context"

	"google.golang.org/grpc"
)

// HeartbeatServer is implemented by Service.
type HeartbeatServer interface {
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

// RegisterHeartbeatServer registers srv on s under the fixed service
// name every graphd daemon listens for on connection setup.
func RegisterHeartbeatServer(s *grpc.Server, srv HeartbeatServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "graphd.Heartbeat",
	HandlerType: (*HeartbeatServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler:    pingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "util/grpc/heartbeat",
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HeartbeatServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Heartbeat/Ping"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HeartbeatServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// HeartbeatClient is the caller-side stub, wired to a *grpc.ClientConn
// dialed with the graphd json codec.
type HeartbeatClient interface {
	Ping(ctx context.Context, req *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type heartbeatClient struct {
	cc *grpc.ClientConn
}

func NewHeartbeatClient(cc *grpc.ClientConn) HeartbeatClient {
	return &heartbeatClient{cc: cc}
}

func (c *heartbeatClient) Ping(ctx context.Context, req *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Heartbeat/Ping", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
