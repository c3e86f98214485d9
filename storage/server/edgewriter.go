package server

import (
	"context"
	"fmt"

	"github.com/baudgraph/graphd/keys"
	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/schema"
	"github.com/baudgraph/graphd/txn"
)

// ChainTransactionManager commits one (local, remote) chain's edges:
// the out-edge rows land in the local partition, the in-edge rows in
// the remote partition. The two partition writes cannot share a single
// replicated-store transaction, so a remote failure is compensated by
// removing the local rows just written, and an index-write failure
// compensates both sides. This makes a chain's commit atomic from the
// caller's point of view even though the underlying writes are not.
type ChainTransactionManager struct {
	store *Store
}

func NewChainTransactionManager(store *Store) *ChainTransactionManager {
	return &ChainTransactionManager{store: store}
}

var _ txn.TransactionManager = (*ChainTransactionManager)(nil)

func (tm *ChainTransactionManager) AddSamePartEdges(vidLen int, space metapb.SpaceID, chain txn.Chain, edges []txn.EncodedEdge, indexes txn.IndexWriter) storagepb.ResultCode {
	ctx := context.Background()

	outKVs := make([]kv.KVPair, len(edges))
	outKeys := make([][]byte, len(edges))
	inKVs := make([]kv.KVPair, len(edges))
	inKeys := make([][]byte, len(edges))
	for i, e := range edges {
		outKeys[i] = keys.OutEdgeKey(chain.Local, e.Src, e.EdgeType, e.Rank, e.Dst)
		outKVs[i] = kv.KVPair{Key: outKeys[i], Value: e.Value}
		inKeys[i] = keys.InEdgeKey(chain.Remote, e.Src, e.EdgeType, e.Rank, e.Dst)
		inKVs[i] = kv.KVPair{Key: inKeys[i], Value: e.Value}
	}

	if code := tm.putSync(ctx, space, chain.Local, outKVs); code != storagepb.ResultSucceeded {
		return code
	}

	if code := tm.putSync(ctx, space, chain.Remote, inKVs); code != storagepb.ResultSucceeded {
		tm.removeSync(ctx, space, chain.Local, outKeys)
		return code
	}

	if indexes != nil {
		if err := indexes.WriteIndexEntries(space, chain, edges); err != nil {
			tm.removeSync(ctx, space, chain.Local, outKeys)
			tm.removeSync(ctx, space, chain.Remote, inKeys)
			return storagepb.ResultUnknown
		}
	}

	return storagepb.ResultSucceeded
}

func (tm *ChainTransactionManager) putSync(ctx context.Context, space metapb.SpaceID, part metapb.PartID, kvs []kv.KVPair) storagepb.ResultCode {
	result := make(chan storagepb.ResultCode, 1)
	tm.store.AsyncMultiPut(ctx, space, part, kvs, func(code storagepb.ResultCode) { result <- code })
	return <-result
}

func (tm *ChainTransactionManager) removeSync(ctx context.Context, space metapb.SpaceID, part metapb.PartID, rowKeys [][]byte) {
	result := make(chan storagepb.ResultCode, 1)
	tm.store.AsyncMultiRemove(ctx, space, part, rowKeys, func(code storagepb.ResultCode) { result <- code })
	<-result
}

// IndexWriter writes an edge's secondary-index entries into the same
// local partition its out-edge row lands in, derived from the edge's
// encoded column values against the space's registered edge indexes.
type IndexWriter struct {
	store   *Store
	catalog *Catalog
}

func NewIndexWriter(store *Store, catalog *Catalog) *IndexWriter {
	return &IndexWriter{store: store, catalog: catalog}
}

var _ txn.IndexWriter = (*IndexWriter)(nil)

func (w *IndexWriter) WriteIndexEntries(space metapb.SpaceID, chain txn.Chain, edges []txn.EncodedEdge) error {
	if len(edges) == 0 {
		return nil
	}

	var kvs []kv.KVPair
	for _, e := range edges {
		schemaID, cols, rw, err := w.edgeSchema(space, e)
		if err != nil {
			return err
		}
		decoded, err := rw.Decode(e.Value)
		if err != nil {
			return err
		}

		for _, idx := range w.edgeIndexes(space, schemaID) {
			fieldValues := make([][]byte, len(idx.Fields))
			for i, f := range idx.Fields {
				fieldValues[i] = valueOf(cols, decoded, f.Name)
			}
			key := indexRowKey(idx.IndexID, fieldValues, true, e.Src, e.EdgeType, e.Rank, e.Dst, nil)
			kvs = append(kvs, kv.KVPair{Key: key})
		}
	}
	if len(kvs) == 0 {
		return nil
	}

	ctx := context.Background()
	result := make(chan storagepb.ResultCode, 1)
	w.store.AsyncMultiPut(ctx, space, chain.Local, kvs, func(code storagepb.ResultCode) { result <- code })
	if code := <-result; code != storagepb.ResultSucceeded {
		return errIndexWriteFailed{code: code}
	}
	return nil
}

func (w *IndexWriter) edgeSchema(space metapb.SpaceID, e txn.EncodedEdge) (metapb.SchemaID, []metapb.ColumnDef, *schema.RowWriterV2, error) {
	schemaID := metapb.SchemaID(e.EdgeType)
	cols, ok := w.catalog.SchemaColumns(space, schemaID, true)
	if !ok {
		return 0, nil, nil, errSchemaMissing{space: space, schemaID: schemaID}
	}
	return schemaID, cols, schema.NewRowWriterV2(metapb.SchemaVersion{Columns: cols}), nil
}

func (w *IndexWriter) edgeIndexes(space metapb.SpaceID, schemaID metapb.SchemaID) []*metapb.IndexItem {
	var out []*metapb.IndexItem
	for _, id := range w.catalog.indexIDs(space) {
		idx, ok := w.catalog.Index(space, id)
		if ok && idx.IsEdge && idx.SchemaID == schemaID {
			out = append(out, idx)
		}
	}
	return out
}

func valueOf(cols []metapb.ColumnDef, decoded [][]byte, name string) []byte {
	for i, c := range cols {
		if c.Name == name {
			return decoded[i]
		}
	}
	return nil
}

type errSchemaMissing struct {
	space    metapb.SpaceID
	schemaID metapb.SchemaID
}

func (e errSchemaMissing) Error() string {
	return fmt.Sprintf("server: edge schema %d not found in space %d", e.schemaID, e.space)
}

type errIndexWriteFailed struct {
	code storagepb.ResultCode
}

func (e errIndexWriteFailed) Error() string {
	return "server: index write failed: " + e.code.String()
}

// NewEncoder builds a txn.Encoder against catalog, encoding new edge
// props through the schema bound to edgeType.
func NewEncoder(catalog *Catalog) txn.Encoder {
	return func(space metapb.SpaceID, edgeType int32, propNames []string, props [][]byte) ([]byte, storagepb.ErrorCode) {
		if edgeType < 0 {
			edgeType = -edgeType
		}
		cols, ok := catalog.SchemaColumns(space, metapb.SchemaID(edgeType), true)
		if !ok {
			return nil, storagepb.ErrSchemaNotFound
		}
		value, fault := schema.NewRowWriterV2(metapb.SchemaVersion{Columns: cols}).Write(propNames, props)
		if fault != nil {
			return nil, schema.TranslateWriteFault(fault.Fault, true)
		}
		return value, storagepb.ErrSucceeded
	}
}

// NewVidLenResolver builds a txn.VidLenResolver against catalog.
func NewVidLenResolver(catalog *Catalog) txn.VidLenResolver {
	return catalog.VidLen
}

// NewPartResolver builds a txn.PartResolver that routes a vertex id to
// its owning partition by the space's current partition count.
func NewPartResolver(store *Store) txn.PartResolver {
	return func(space metapb.SpaceID, vid []byte) (metapb.PartID, error) {
		parts := store.Parts(space)
		if len(parts) == 0 {
			return 0, errSpaceHasNoPartitions{space: space}
		}
		return keys.HashToPart(vid, uint32(len(parts))), nil
	}
}

type errSpaceHasNoPartitions struct {
	space metapb.SpaceID
}

func (e errSpaceHasNoPartitions) Error() string { return "server: space has no partitions" }
