package meta

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/util/grpc/heartbeat"
)

// GetRequest/GetResponse and PutRequest/PutResponse are the generic KV
// passthrough the meta RPC surface offers over its one partition: every
// schema, index, host, and user record the meta service manages is an
// ordinary key under one of the well-known prefixes in package metapb.
type GetRequest struct {
	Key []byte
}

type GetResponse struct {
	Value []byte
	Found bool
}

type PutRequest struct {
	Key   []byte
	Value []byte
}

type PutResponse struct {
	Code storagepb.ResultCode
}

type ClusterIDRequest struct{}

type ClusterIDResponse struct {
	ClusterID uint64
}

// HeartbeatRequest is sent by a storage daemon on every heartbeat tick:
// its own address, host resource stats, and the leader of every
// partition it hosts. The storage daemon leaves each PartitionStat's
// Term at zero.
type HeartbeatRequest struct {
	ClusterID uint64
	Addr      metapb.HostAddr
	Stats     metapb.NodeSysStats
	Parts     []metapb.PartitionStat
}

func (r *HeartbeatRequest) GetClusterID() uint64 { return r.ClusterID }

type HeartbeatResponse struct{}

type ListPartsRequest struct {
	Space metapb.SpaceID
}

type ListPartsResponse struct {
	Parts []metapb.PartID
}

type GetPartsAllocRequest struct {
	Space metapb.SpaceID
}

type GetPartsAllocResponse struct {
	Found bool
	Alloc PartsAlloc
}

// Server is the meta daemon's client-facing grpc surface: the
// heartbeat handshake every connection performs, plus the meta
// partition's KV passthrough, cluster-id lookup, storage-host
// liveness tracking, and partition allocation directory.
type Server struct {
	*heartbeat.Service

	store    kv.AsyncStore
	identity *ClusterIdentity
	service  *Service
	hosts    *HostManager
}

func NewServer(store kv.AsyncStore, identity *ClusterIdentity, service *Service, hostDeadAfter time.Duration) *Server {
	if hostDeadAfter <= 0 {
		hostDeadAfter = 30 * time.Second
	}
	return &Server{
		Service:  &heartbeat.Service{ClusterID: identity.ID()},
		store:    store,
		identity: identity,
		service:  service,
		hosts:    NewHostManager(hostDeadAfter),
	}
}

func (s *Server) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	val, found, err := s.store.Get(ctx, metapb.MetaSpaceID, metapb.MetaPartID, req.Key)
	if err != nil {
		return nil, err
	}
	return &GetResponse{Value: val, Found: found}, nil
}

func (s *Server) Put(ctx context.Context, req *PutRequest) (*PutResponse, error) {
	done := make(chan storagepb.ResultCode, 1)
	s.store.AsyncMultiPut(ctx, metapb.MetaSpaceID, metapb.MetaPartID,
		[]kv.KVPair{{Key: req.Key, Value: req.Value}},
		func(code storagepb.ResultCode) { done <- code })

	select {
	case code := <-done:
		return &PutResponse{Code: code}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) GetClusterID(ctx context.Context, req *ClusterIDRequest) (*ClusterIDResponse, error) {
	return &ClusterIDResponse{ClusterID: s.identity.ID()}, nil
}

// Heartbeat records a storage daemon's liveness and, as a side effect,
// registers the partition allocation it reports so ListParts/
// GetPartsAlloc stay current without a separate admin RPC.
func (s *Server) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	s.hosts.Touch(req.Addr, req.Stats, req.Parts)

	bySpace := make(map[metapb.SpaceID][]metapb.Partition)
	for _, p := range req.Parts {
		bySpace[p.Space] = appendPeerIfNew(bySpace[p.Space], p.Part, req.Addr)
	}
	for space, parts := range bySpace {
		if err := s.service.RegisterParts(ctx, PartsAlloc{Space: space, Parts: parts}); err != nil {
			return nil, err
		}
	}
	return &HeartbeatResponse{}, nil
}

func appendPeerIfNew(parts []metapb.Partition, part metapb.PartID, peer metapb.HostAddr) []metapb.Partition {
	for i := range parts {
		if parts[i].Part != part {
			continue
		}
		for _, p := range parts[i].Peers {
			if p == peer {
				return parts
			}
		}
		parts[i].Peers = append(parts[i].Peers, peer)
		return parts
	}
	return append(parts, metapb.Partition{Part: part, Peers: []metapb.HostAddr{peer}})
}

func (s *Server) ListParts(ctx context.Context, req *ListPartsRequest) (*ListPartsResponse, error) {
	ids, err := s.service.ListParts(ctx, req.Space)
	if err != nil {
		return nil, err
	}
	return &ListPartsResponse{Parts: ids}, nil
}

func (s *Server) GetPartsAlloc(ctx context.Context, req *GetPartsAllocRequest) (*GetPartsAllocResponse, error) {
	alloc, found, err := s.service.GetPartsAlloc(ctx, req.Space)
	if err != nil {
		return nil, err
	}
	return &GetPartsAllocResponse{Found: found, Alloc: alloc}, nil
}

// RegisterServer wires both the meta RPC surface and the heartbeat
// service it embeds onto s.
func RegisterServer(s *grpc.Server, srv *Server) {
	heartbeat.RegisterHeartbeatServer(s, srv.Service)
	grpcServiceRegister(s, srv)
}

var metaServiceDesc = grpc.ServiceDesc{
	ServiceName: "graphd.Meta",
	HandlerType: (*metaServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: getHandler},
		{MethodName: "Put", Handler: putHandler},
		{MethodName: "GetClusterID", Handler: getClusterIDHandler},
		{MethodName: "Heartbeat", Handler: heartbeatHandler},
		{MethodName: "ListParts", Handler: listPartsHandler},
		{MethodName: "GetPartsAlloc", Handler: getPartsAllocHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "meta/rpc",
}

type metaServer interface {
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Put(context.Context, *PutRequest) (*PutResponse, error)
	GetClusterID(context.Context, *ClusterIDRequest) (*ClusterIDResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	ListParts(context.Context, *ListPartsRequest) (*ListPartsResponse, error)
	GetPartsAlloc(context.Context, *GetPartsAllocRequest) (*GetPartsAllocResponse, error)
}

func grpcServiceRegister(s *grpc.Server, srv *Server) {
	s.RegisterService(&metaServiceDesc, srv)
}

func getHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(metaServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Meta/Get"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(metaServer).Get(ctx, req.(*GetRequest))
	})
}

func putHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(metaServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Meta/Put"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(metaServer).Put(ctx, req.(*PutRequest))
	})
}

func getClusterIDHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ClusterIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(metaServer).GetClusterID(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Meta/GetClusterID"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(metaServer).GetClusterID(ctx, req.(*ClusterIDRequest))
	})
}

func heartbeatHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(metaServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Meta/Heartbeat"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(metaServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	})
}

func listPartsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListPartsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(metaServer).ListParts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Meta/ListParts"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(metaServer).ListParts(ctx, req.(*ListPartsRequest))
	})
}

func getPartsAllocHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetPartsAllocRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(metaServer).GetPartsAlloc(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Meta/GetPartsAlloc"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(metaServer).GetPartsAlloc(ctx, req.(*GetPartsAllocRequest))
	})
}

// MetaClient is the caller-side stub used by the storage daemon to
// reach the meta partition.
type MetaClient interface {
	Get(ctx context.Context, req *GetRequest, opts ...grpc.CallOption) (*GetResponse, error)
	Put(ctx context.Context, req *PutRequest, opts ...grpc.CallOption) (*PutResponse, error)
	GetClusterID(ctx context.Context, req *ClusterIDRequest, opts ...grpc.CallOption) (*ClusterIDResponse, error)
	Heartbeat(ctx context.Context, req *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	ListParts(ctx context.Context, req *ListPartsRequest, opts ...grpc.CallOption) (*ListPartsResponse, error)
	GetPartsAlloc(ctx context.Context, req *GetPartsAllocRequest, opts ...grpc.CallOption) (*GetPartsAllocResponse, error)
}

type metaClient struct {
	cc *grpc.ClientConn
}

func NewMetaClient(cc *grpc.ClientConn) MetaClient { return &metaClient{cc: cc} }

func (c *metaClient) Get(ctx context.Context, req *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	out := new(GetResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Meta/Get", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metaClient) Put(ctx context.Context, req *PutRequest, opts ...grpc.CallOption) (*PutResponse, error) {
	out := new(PutResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Meta/Put", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metaClient) GetClusterID(ctx context.Context, req *ClusterIDRequest, opts ...grpc.CallOption) (*ClusterIDResponse, error) {
	out := new(ClusterIDResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Meta/GetClusterID", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metaClient) Heartbeat(ctx context.Context, req *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Meta/Heartbeat", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metaClient) ListParts(ctx context.Context, req *ListPartsRequest, opts ...grpc.CallOption) (*ListPartsResponse, error) {
	out := new(ListPartsResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Meta/ListParts", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metaClient) GetPartsAlloc(ctx context.Context, req *GetPartsAllocRequest, opts ...grpc.CallOption) (*GetPartsAllocResponse, error) {
	out := new(GetPartsAllocResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Meta/GetPartsAlloc", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
