package server

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/baudgraph/graphd/keys"
	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/plan"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/schema"
	"github.com/baudgraph/graphd/util/encoding"
)

// Backend implements plan.Backend against the aggregate Store and its
// index/schema Catalog. Building and evaluating the opaque filter
// expression language a LookupIndexRequest may carry is out of scope:
// EvalFilter returns a no-op filter, so a request with a Filter set
// still runs (every candidate row passes) rather than failing to plan.
type Backend struct {
	store   *Store
	catalog *Catalog
}

func NewBackend(store *Store, catalog *Catalog) *Backend {
	return &Backend{store: store, catalog: catalog}
}

var _ plan.Backend = (*Backend)(nil)

func (b *Backend) ScanIndex(space metapb.SpaceID, qctx storagepb.IndexQueryContext) (kv.Iterator, error) {
	idx, ok := b.catalog.Index(space, qctx.IndexID)
	if !ok {
		return nil, fmt.Errorf("server: index %d not found in space %d", qctx.IndexID, space)
	}

	var ranges [][2][]byte
	if in := findInHint(qctx.Hints); in != nil {
		for _, v := range in.In {
			hints := substituteEqual(qctx.Hints, in.Column, v)
			s, e := buildScanRange(qctx.IndexID, idx.Fields, hints)
			ranges = append(ranges, [2][]byte{s, e})
		}
	} else {
		s, e := buildScanRange(qctx.IndexID, idx.Fields, qctx.Hints)
		ranges = append(ranges, [2][]byte{s, e})
	}

	// Every (partition, range) pair opens its own independent scan, so
	// they're fanned out concurrently rather than opened one at a time.
	parts := b.store.Parts(space)
	iters := make([]kv.Iterator, len(parts)*len(ranges))
	g, ctx := errgroup.WithContext(context.Background())
	for pi, part := range parts {
		for ri, r := range ranges {
			pi, part, ri, r := pi, part, ri, r
			g.Go(func() error {
				it, err := b.store.Scan(ctx, space, part, r[0], r[1])
				if err != nil {
					return err
				}
				iters[pi*len(ranges)+ri] = it
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		for _, it := range iters {
			if it != nil {
				it.Close()
			}
		}
		return nil, err
	}
	return newMultiIterator(iters), nil
}

func (b *Backend) FetchRow(space metapb.SpaceID, isEdge bool, indexKey []byte) (rowKey, row []byte, err error) {
	idx, err := b.indexOf(space, indexKey)
	if err != nil {
		return nil, nil, err
	}
	_, rest, err := decodeIndexFields(indexKey, len(idx.Fields))
	if err != nil {
		return nil, nil, err
	}

	numParts := uint32(len(b.store.Parts(space)))
	ctx := context.Background()

	if isEdge {
		d, err := decodeEdgeDisambiguator(rest)
		if err != nil {
			return nil, nil, err
		}
		part := keys.HashToPart(d.src, numParts)
		rowKey = keys.OutEdgeKey(part, d.src, d.edgeType, d.rank, d.dst)
		row, found, err := b.store.Get(ctx, space, part, rowKey)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, fmt.Errorf("server: edge row not found for index entry")
		}
		return rowKey, row, nil
	}

	d, err := decodeVertexDisambiguator(rest)
	if err != nil {
		return nil, nil, err
	}
	part := keys.HashToPart(d.vid, numParts)
	rowKey = keys.VertexRowKey(part, d.vid, idx.SchemaID)
	row, found, err := b.store.Get(ctx, space, part, rowKey)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("server: vertex row not found for index entry")
	}
	return rowKey, row, nil
}

func (b *Backend) EvalFilter(filter []byte) plan.FilterFunc {
	return func(key, row []byte) (bool, error) { return true, nil }
}

func (b *Backend) Project(space metapb.SpaceID, isEdge bool, indexKey, row []byte, yield []string) ([]string, [][]byte, error) {
	idx, err := b.indexOf(space, indexKey)
	if err != nil {
		return nil, nil, err
	}
	fieldValues, rest, err := decodeIndexFields(indexKey, len(idx.Fields))
	if err != nil {
		return nil, nil, err
	}

	fieldByName := make(map[string][]byte, len(idx.Fields))
	for i, f := range idx.Fields {
		fieldByName[f.Name] = fieldValues[i]
	}

	leading := plan.FixedLeadingColumns(isEdge)
	columns := append([]string{}, leading...)
	columns = append(columns, yield...)
	values := make([][]byte, len(columns))

	if isEdge {
		d, derr := decodeEdgeDisambiguator(rest)
		if derr != nil {
			return nil, nil, derr
		}
		values[0], values[1], values[2] = d.src, rankBytes(d.rank), d.dst
	} else {
		d, derr := decodeVertexDisambiguator(rest)
		if derr != nil {
			return nil, nil, derr
		}
		values[0] = d.vid
	}

	var decodedRow [][]byte
	var schemaCols []metapb.ColumnDef
	if row != nil {
		cols, ok := b.catalog.SchemaColumns(space, idx.SchemaID, isEdge)
		if !ok {
			return nil, nil, fmt.Errorf("server: schema %d not found in space %d", idx.SchemaID, space)
		}
		schemaCols = cols
		decodedRow, err = schema.NewRowWriterV2(metapb.SchemaVersion{Columns: cols}).Decode(row)
		if err != nil {
			return nil, nil, err
		}
	}

	for i, name := range yield {
		col := len(leading) + i
		if v, ok := fieldByName[name]; ok {
			values[col] = v
			continue
		}
		for j, c := range schemaCols {
			if c.Name == name {
				values[col] = decodedRow[j]
				break
			}
		}
	}
	return columns, values, nil
}

func (b *Backend) indexOf(space metapb.SpaceID, indexKey []byte) (*metapb.IndexItem, error) {
	_, indexID, err := encoding.DecodeUvarintAscending(indexKey[1:])
	if err != nil {
		return nil, err
	}
	idx, ok := b.catalog.Index(space, uint32(indexID))
	if !ok {
		return nil, fmt.Errorf("server: index %d not found in space %d", indexID, space)
	}
	return idx, nil
}

func rankBytes(rank int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(rank)
		rank >>= 8
	}
	return b
}

func findInHint(hints []storagepb.ColumnHint) *storagepb.ColumnHint {
	for i := range hints {
		if hints[i].In != nil {
			return &hints[i]
		}
	}
	return nil
}

func substituteEqual(hints []storagepb.ColumnHint, column string, value []byte) []storagepb.ColumnHint {
	out := make([]storagepb.ColumnHint, len(hints))
	for i, h := range hints {
		if h.Column == column {
			out[i] = storagepb.ColumnHint{Column: column, Equal: value}
			continue
		}
		out[i] = h
	}
	return out
}

// multiIterator concatenates several kv.Iterators in sequence. Order
// across iterators is not merged; within one iterator it is preserved.
type multiIterator struct {
	iters []kv.Iterator
	idx   int
}

func newMultiIterator(iters []kv.Iterator) *multiIterator {
	return &multiIterator{iters: iters}
}

func (m *multiIterator) Next() bool {
	for m.idx < len(m.iters) {
		if m.iters[m.idx].Next() {
			return true
		}
		m.iters[m.idx].Close()
		m.idx++
	}
	return false
}

func (m *multiIterator) Key() []byte      { return m.iters[m.idx].Key() }
func (m *multiIterator) Value() []byte    { return m.iters[m.idx].Value() }
func (m *multiIterator) Bookmark() []byte { return m.iters[m.idx].Bookmark() }

func (m *multiIterator) Err() error {
	if m.idx < len(m.iters) {
		return m.iters[m.idx].Err()
	}
	return nil
}

func (m *multiIterator) Close() {
	for ; m.idx < len(m.iters); m.idx++ {
		m.iters[m.idx].Close()
	}
}
