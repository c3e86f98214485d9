package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/baudgraph/graphd/keys"
	"github.com/baudgraph/graphd/plan"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/schema"
	"github.com/baudgraph/graphd/txn"
	"github.com/baudgraph/graphd/util/grpc/heartbeat"
)

// Server is the storage daemon's client-facing grpc surface: the
// heartbeat handshake every connection performs, atomic edge writes,
// secondary-index lookups, and single-vertex updates.
type Server struct {
	*heartbeat.Service

	store   *Store
	catalog *Catalog
	backend *Backend
	writer  *txn.Writer
}

func NewServer(clusterID uint64, store *Store, catalog *Catalog, writer *txn.Writer) *Server {
	return &Server{
		Service: &heartbeat.Service{ClusterID: clusterID},
		store:   store,
		catalog: catalog,
		backend: NewBackend(store, catalog),
		writer:  writer,
	}
}

// AddEdgesAtomic implements C7: the two-sided edge write, aborted for
// the whole request on any partition-independent failure per the
// atomic edge writer's request-level-abort policy.
func (s *Server) AddEdgesAtomic(ctx context.Context, req *storagepb.AddEdgesRequest) (*storagepb.ExecResponse, error) {
	return s.writer.Write(req), nil
}

// LookupIndex implements C5: compile req into a plan against this
// daemon's index catalog and kv backend, then run it to exhaustion.
func (s *Server) LookupIndex(ctx context.Context, req *storagepb.LookupIndexRequest) (*storagepb.LookupIndexResponse, error) {
	p, err := plan.Build(s.catalog, s.backend, req)
	if err != nil {
		if perr, ok := err.(*plan.PlannerError); ok {
			return &storagepb.LookupIndexResponse{Failures: []storagepb.PartitionResult{{Code: perr.Code}}}, nil
		}
		return nil, err
	}
	rows, err := p.Run()
	if err != nil {
		return nil, err
	}
	resp := &storagepb.LookupIndexResponse{Rows: make([]storagepb.Row, len(rows))}
	for i, r := range rows {
		resp.Rows[i] = storagepb.Row{Columns: r.Columns, Values: r.Values}
	}
	return resp, nil
}

// UpdateVertex implements a single-partition vertex tag update: encode
// the props against the tag's schema, then put the row under its
// owning partition.
func (s *Server) UpdateVertex(ctx context.Context, req *storagepb.UpdateVertexRequest) (*storagepb.UpdateResponse, error) {
	cols, ok := s.catalog.SchemaColumns(req.SpaceID, req.TagID, false)
	if !ok {
		return &storagepb.UpdateResponse{Failures: []storagepb.PartitionResult{
			{PartID: req.PartID, Code: storagepb.ErrSchemaNotFound},
		}}, nil
	}

	value, fault := schema.NewRowWriterV2(metapb.SchemaVersion{Columns: cols}).Write(req.PropNames, req.Props)
	if fault != nil {
		return &storagepb.UpdateResponse{Failures: []storagepb.PartitionResult{
			{PartID: req.PartID, Code: schema.TranslateWriteFault(fault.Fault, false)},
		}}, nil
	}

	key := keys.VertexRowKey(req.PartID, req.VertexID, req.TagID)

	done := make(chan storagepb.ResultCode, 1)
	s.store.AsyncMultiPut(ctx, req.SpaceID, req.PartID, []storagepb.KVPair{{Key: key, Value: value}},
		func(code storagepb.ResultCode) { done <- code })

	select {
	case code := <-done:
		if code != storagepb.ResultSucceeded {
			return &storagepb.UpdateResponse{Failures: []storagepb.PartitionResult{
				{PartID: req.PartID, Code: storagepb.TranslateResultCode(code)},
			}}, nil
		}
		return &storagepb.UpdateResponse{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RegisterServer wires both the storage RPC surface and the heartbeat
// service it embeds onto s.
func RegisterServer(s *grpc.Server, srv *Server) {
	heartbeat.RegisterHeartbeatServer(s, srv.Service)
	grpcServiceRegister(s, srv)
}

var storageServiceDesc = grpc.ServiceDesc{
	ServiceName: "graphd.Storage",
	HandlerType: (*storageServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddEdgesAtomic", Handler: addEdgesAtomicHandler},
		{MethodName: "LookupIndex", Handler: lookupIndexHandler},
		{MethodName: "UpdateVertex", Handler: updateVertexHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storage/server/rpc",
}

type storageServer interface {
	AddEdgesAtomic(context.Context, *storagepb.AddEdgesRequest) (*storagepb.ExecResponse, error)
	LookupIndex(context.Context, *storagepb.LookupIndexRequest) (*storagepb.LookupIndexResponse, error)
	UpdateVertex(context.Context, *storagepb.UpdateVertexRequest) (*storagepb.UpdateResponse, error)
}

func grpcServiceRegister(s *grpc.Server, srv *Server) {
	s.RegisterService(&storageServiceDesc, srv)
}

func addEdgesAtomicHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(storagepb.AddEdgesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(storageServer).AddEdgesAtomic(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Storage/AddEdgesAtomic"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(storageServer).AddEdgesAtomic(ctx, req.(*storagepb.AddEdgesRequest))
	})
}

func lookupIndexHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(storagepb.LookupIndexRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(storageServer).LookupIndex(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Storage/LookupIndex"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(storageServer).LookupIndex(ctx, req.(*storagepb.LookupIndexRequest))
	})
}

func updateVertexHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(storagepb.UpdateVertexRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(storageServer).UpdateVertex(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/graphd.Storage/UpdateVertex"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(storageServer).UpdateVertex(ctx, req.(*storagepb.UpdateVertexRequest))
	})
}

// StorageClient is the caller-side stub a graphd client dials the
// storage daemon through.
type StorageClient interface {
	AddEdgesAtomic(ctx context.Context, req *storagepb.AddEdgesRequest, opts ...grpc.CallOption) (*storagepb.ExecResponse, error)
	LookupIndex(ctx context.Context, req *storagepb.LookupIndexRequest, opts ...grpc.CallOption) (*storagepb.LookupIndexResponse, error)
	UpdateVertex(ctx context.Context, req *storagepb.UpdateVertexRequest, opts ...grpc.CallOption) (*storagepb.UpdateResponse, error)
}

type storageClient struct {
	cc *grpc.ClientConn
}

func NewStorageClient(cc *grpc.ClientConn) StorageClient { return &storageClient{cc: cc} }

func (c *storageClient) AddEdgesAtomic(ctx context.Context, req *storagepb.AddEdgesRequest, opts ...grpc.CallOption) (*storagepb.ExecResponse, error) {
	out := new(storagepb.ExecResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Storage/AddEdgesAtomic", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) LookupIndex(ctx context.Context, req *storagepb.LookupIndexRequest, opts ...grpc.CallOption) (*storagepb.LookupIndexResponse, error) {
	out := new(storagepb.LookupIndexResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Storage/LookupIndex", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) UpdateVertex(ctx context.Context, req *storagepb.UpdateVertexRequest, opts ...grpc.CallOption) (*storagepb.UpdateResponse, error) {
	out := new(storagepb.UpdateResponse)
	if err := c.cc.Invoke(ctx, "/graphd.Storage/UpdateVertex", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
