package server

import (
	"github.com/baudgraph/graphd/keys"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/util"
	"github.com/baudgraph/graphd/util/encoding"
)

// indexRowKey builds the key stored for one index entry: the index id,
// the indexed field values in index-column order, then a disambiguator
// (the vertex id, or the edge's full identity) so distinct rows with
// identical indexed values never collide.
func indexRowKey(indexID uint32, fieldValues [][]byte, isEdge bool, src []byte, edgeType int32, rank int64, dst []byte, vid []byte) []byte {
	buf := []byte{keys.RowKindIndex}
	buf = encoding.EncodeUvarintAscending(buf, uint64(indexID))
	for _, v := range fieldValues {
		buf = encoding.EncodeBytesAscending(buf, v)
	}
	if isEdge {
		buf = encoding.EncodeBytesAscending(buf, src)
		buf = encoding.EncodeVarintAscending(buf, int64(edgeType))
		buf = encoding.EncodeVarintAscending(buf, rank)
		buf = encoding.EncodeBytesAscending(buf, dst)
	} else {
		buf = encoding.EncodeBytesAscending(buf, vid)
	}
	return buf
}

// indexPrefix is the fixed-length leading portion of every key of one
// index (RowKindIndex marker + index id).
func indexPrefix(indexID uint32) []byte {
	buf := []byte{keys.RowKindIndex}
	return encoding.EncodeUvarintAscending(buf, uint64(indexID))
}

// decodeIndexFields strips the RowKindIndex marker and index id off
// key, then decodes its numFields indexed column values, returning
// them along with the trailing disambiguator bytes.
func decodeIndexFields(key []byte, numFields int) (fieldValues [][]byte, rest []byte, err error) {
	rest = key[1:] // RowKindIndex
	rest, _, err = encoding.DecodeUvarintAscending(rest)
	if err != nil {
		return nil, nil, err
	}
	fieldValues = make([][]byte, numFields)
	for i := 0; i < numFields; i++ {
		rest, fieldValues[i], err = encoding.DecodeBytesAscending(rest)
		if err != nil {
			return nil, nil, err
		}
	}
	return fieldValues, rest, nil
}

type vertexDisambiguator struct {
	vid []byte
}

func decodeVertexDisambiguator(rest []byte) (*vertexDisambiguator, error) {
	_, vid, err := encoding.DecodeBytesAscending(rest)
	if err != nil {
		return nil, err
	}
	return &vertexDisambiguator{vid: vid}, nil
}

type edgeDisambiguator struct {
	src, dst []byte
	edgeType int32
	rank     int64
}

func decodeEdgeDisambiguator(rest []byte) (*edgeDisambiguator, error) {
	rest, src, err := encoding.DecodeBytesAscending(rest)
	if err != nil {
		return nil, err
	}
	rest, edgeType, err := encoding.DecodeVarintAscending(rest)
	if err != nil {
		return nil, err
	}
	rest, rank, err := encoding.DecodeVarintAscending(rest)
	if err != nil {
		return nil, err
	}
	_, dst, err := encoding.DecodeBytesAscending(rest)
	if err != nil {
		return nil, err
	}
	return &edgeDisambiguator{src: src, dst: dst, edgeType: int32(edgeType), rank: rank}, nil
}

// buildScanRange derives [start, end) for an index scan from the
// request's column hints, narrowing by consecutive equality hints
// until it hits the first range (or unhinted) field.
func buildScanRange(indexID uint32, fields []metapb.ColumnDef, hints []storagepb.ColumnHint) (start, end []byte) {
	byName := make(map[string]storagepb.ColumnHint, len(hints))
	for _, h := range hints {
		byName[h.Column] = h
	}

	prefix := indexPrefix(indexID)
	for _, f := range fields {
		h, ok := byName[f.Name]
		if !ok {
			break
		}
		if h.Equal != nil {
			prefix = encoding.EncodeBytesAscending(prefix, h.Equal)
			continue
		}
		start = encoding.EncodeBytesAscending(append([]byte{}, prefix...), h.Begin)
		if h.End != nil {
			end = encoding.EncodeBytesAscending(append([]byte{}, prefix...), h.End)
		} else {
			_, end = util.BytesPrefix(prefix)
		}
		return start, end
	}
	start, end = util.BytesPrefix(prefix)
	return start, end
}

// equalityBounds is buildScanRange's single-value special case: the
// range of one index whose equalColumn equals value. Nothing in this
// package calls it; ScanIndex calls buildScanRange directly.
func equalityBounds(indexID uint32, fields []metapb.ColumnDef, equalColumn string, value []byte) (start, end []byte) {
	hints := []storagepb.ColumnHint{{Column: equalColumn, Equal: value}}
	return buildScanRange(indexID, fields, hints)
}
