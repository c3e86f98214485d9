// Package txn implements the cross-partition atomic edge writer (C7):
// it groups an add-edges request into (local_part, remote_part) chains
// and drives each through a TransactionManager so the two-sided edge
// write is durable together or not at all.
package txn

import (
	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/processor"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
)

// Chain routes one two-sided edge write.
type Chain struct {
	Local  metapb.PartID
	Remote metapb.PartID
}

// EncodedEdge is one edge after schema encoding, ready to be split into
// its out- and in-key writes by the transaction manager.
type EncodedEdge struct {
	Src      []byte
	EdgeType int32
	Rank     int64
	Dst      []byte
	Value    []byte
}

// IndexWriter is invoked by the transaction manager, inside the same
// transaction as the edge rows, so secondary edge indexes never
// observe a torn write relative to the base rows.
type IndexWriter interface {
	WriteIndexEntries(space metapb.SpaceID, chain Chain, edges []EncodedEdge) error
}

// TransactionManager commits one chain's edges as a single atomic
// cross-partition operation: the local out-edge rows and the remote
// in-edge rows land together, or neither does.
type TransactionManager interface {
	AddSamePartEdges(vidLen int, space metapb.SpaceID, chain Chain, edges []EncodedEdge, indexes IndexWriter) storagepb.ResultCode
}

// VidLenResolver looks up a space's fixed vertex-id length.
type VidLenResolver func(space metapb.SpaceID) (int, bool)

// PartResolver routes a vertex id to its owning partition.
type PartResolver func(space metapb.SpaceID, vid []byte) (metapb.PartID, error)

// Encoder encodes one edge's props against the schema for |edgeType|,
// returning a *schema.WriteFaultError-shaped error via ErrorCode so
// this package doesn't need to import the schema package's concrete
// fault type.
type Encoder func(space metapb.SpaceID, edgeType int32, propNames []string, props [][]byte) ([]byte, storagepb.ErrorCode)

// Writer is the atomic edge writer.
type Writer struct {
	store       kv.AsyncStore
	txnMan      TransactionManager
	resolveVid  VidLenResolver
	resolvePart PartResolver
	encode      Encoder
	indexes     IndexWriter // handed to the transaction manager with every chain, whatever the space
}

func NewWriter(store kv.AsyncStore, txnMan TransactionManager, resolveVid VidLenResolver, resolvePart PartResolver, encode Encoder, indexes IndexWriter) *Writer {
	return &Writer{
		store:       store,
		txnMan:      txnMan,
		resolveVid:  resolveVid,
		resolvePart: resolvePart,
		encode:      encode,
		indexes:     indexes,
	}
}

// Write implements AddEdgesAtomic. It aborts the entire request (rather
// than just the offending partition) on vid-length resolution failure,
// remote-partition resolution failure, or encoding failure, per the
// standardized request-level-abort policy.
func (w *Writer) Write(req *storagepb.AddEdgesRequest) *storagepb.ExecResponse {
	vidLen, ok := w.resolveVid(req.SpaceID)
	if !ok {
		var failures []storagepb.PartitionResult
		for local := range req.Parts {
			failures = append(failures, storagepb.PartitionResult{PartID: local, Code: storagepb.ErrInvalidSpaceVidLen})
		}
		return &storagepb.ExecResponse{Failures: failures}
	}

	chains := make(map[Chain][]EncodedEdge)
	for local, edges := range req.Parts {
		for _, edge := range edges {
			remote, err := w.resolvePart(req.SpaceID, edge.Key.Dst)
			if err != nil {
				return &storagepb.ExecResponse{Failures: []storagepb.PartitionResult{
					{PartID: local, Code: storagepb.ErrSpaceNotFound},
				}}
			}

			value, errCode := w.encode(req.SpaceID, edge.Key.EdgeType, req.PropNames, edge.Props)
			if errCode != storagepb.ErrSucceeded {
				return &storagepb.ExecResponse{Failures: []storagepb.PartitionResult{
					{PartID: local, Code: storagepb.ErrDataTypeMismatch},
				}}
			}

			chain := Chain{Local: local, Remote: remote}
			chains[chain] = append(chains[chain], EncodedEdge{
				Src: edge.Key.Src, EdgeType: edge.Key.EdgeType, Rank: edge.Key.Rank,
				Dst: edge.Key.Dst, Value: value,
			})
		}
	}

	done := make(chan []storagepb.PartitionResult, 1)
	base := processor.NewBase(w.store, len(chains), func(failures []storagepb.PartitionResult) {
		done <- failures
	})
	for chain, edges := range chains {
		go func(chain Chain, edges []EncodedEdge) {
			defer base.Arrive()
			code := w.txnMan.AddSamePartEdges(vidLen, req.SpaceID, chain, edges, w.indexes)
			base.PushResultCode(req.SpaceID, chain.Local, code)
		}(chain, edges)
	}

	return &storagepb.ExecResponse{Failures: <-done}
}
