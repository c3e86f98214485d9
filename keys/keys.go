// Package keys encodes and decodes the composite keys rows are stored
// under: the edge key (part, src_vid, signed edge_type, rank, dst_vid)
// and the part hash used to route a vertex id to its owning partition.
package keys

import (
	"hash/fnv"

	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/util/encoding"
)

// EdgeKey is the decoded form of a stored edge key.
type EdgeKey struct {
	Part     metapb.PartID
	Src      []byte
	EdgeType int32 // signed: positive out-edge, negative in-edge
	Rank     int64
	Dst      []byte
}

// EncodeEdgeKey produces the on-disk key for one side of an edge. Src
// and Dst are fixed-length vertex ids (vidLen bytes, resolved per
// space), so they are written raw; only the remaining fields need an
// order-preserving variable-length encoding.
func EncodeEdgeKey(k EdgeKey) []byte {
	buf := encoding.EncodeUvarintAscending(nil, uint64(k.Part))
	buf = append(buf, k.Src...)
	buf = encoding.EncodeVarintAscending(buf, int64(k.EdgeType))
	buf = encoding.EncodeVarintAscending(buf, k.Rank)
	buf = append(buf, k.Dst...)
	return buf
}

// DecodeEdgeKey reverses EncodeEdgeKey, given the fixed vertex-id length
// for the owning space.
func DecodeEdgeKey(b []byte, vidLen int) (EdgeKey, error) {
	var k EdgeKey
	rest, part, err := encoding.DecodeUvarintAscending(b)
	if err != nil {
		return k, err
	}
	k.Part = metapb.PartID(part)

	if len(rest) < vidLen {
		return k, errShortKey
	}
	k.Src, rest = rest[:vidLen], rest[vidLen:]

	rest, edgeType, err := encoding.DecodeVarintAscending(rest)
	if err != nil {
		return k, err
	}
	k.EdgeType = int32(edgeType)

	rest, rank, err := encoding.DecodeVarintAscending(rest)
	if err != nil {
		return k, err
	}
	k.Rank = rank

	if len(rest) < vidLen {
		return k, errShortKey
	}
	k.Dst = rest[:vidLen]
	return k, nil
}

// OutEdgeKey returns the positive-edge-type key stored in the source
// vertex's partition.
func OutEdgeKey(part metapb.PartID, src []byte, edgeType int32, rank int64, dst []byte) []byte {
	if edgeType < 0 {
		edgeType = -edgeType
	}
	return EncodeEdgeKey(EdgeKey{Part: part, Src: src, EdgeType: edgeType, Rank: rank, Dst: dst})
}

// InEdgeKey returns the negated-edge-type key stored in the
// destination vertex's partition, so in- and out-edges of the same
// logical edge never collide in a merged scan.
func InEdgeKey(part metapb.PartID, src []byte, edgeType int32, rank int64, dst []byte) []byte {
	if edgeType < 0 {
		edgeType = -edgeType
	}
	// The in-edge is keyed from the destination's point of view: dst
	// plays the "src" slot of the stored key so a per-vertex prefix
	// scan of either side only ever touches that vertex's own edges.
	return EncodeEdgeKey(EdgeKey{Part: part, Src: dst, EdgeType: -edgeType, Rank: rank, Dst: src})
}

// rowKind tags a key's row type so vertex, edge, and index rows never
// collide in one partition's keyspace. Edge keys (see EncodeEdgeKey)
// carry no such tag: their leading byte is always an
// EncodeUvarintAscending length byte (>= 0x80), which these constants
// are chosen below to never collide with.
const (
	RowKindVertex byte = 'V'
	RowKindIndex  byte = 'I'
)

// VertexRowKey is the on-disk key for one vertex's tag row.
func VertexRowKey(part metapb.PartID, vid []byte, tagID metapb.SchemaID) []byte {
	buf := []byte{RowKindVertex}
	buf = encoding.EncodeUvarintAscending(buf, uint64(part))
	buf = append(buf, vid...)
	return encoding.EncodeUvarintAscending(buf, uint64(tagID))
}

var errShortKey = shortKeyError{}

type shortKeyError struct{}

func (shortKeyError) Error() string { return "keys: truncated edge key" }

// HashToPart routes a vertex id to a partition number in [1, numParts],
// the 1-based range storage partitions are numbered in (part 0 is the
// reserved meta slot).
func HashToPart(vid []byte, numParts uint32) metapb.PartID {
	if numParts == 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write(vid)
	return metapb.PartID(h.Sum64()%uint64(numParts)) + 1
}
