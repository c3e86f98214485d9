package keys

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/proto/metapb"
)

func TestEdgeKeyRoundTrip(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst := []byte{8, 7, 6, 5, 4, 3, 2, 1}

	out := OutEdgeKey(3, src, 10, -5, dst)
	decoded, err := DecodeEdgeKey(out, 8)
	require.NoError(t, err)
	require.EqualValues(t, 3, decoded.Part)
	require.Equal(t, src, decoded.Src)
	require.EqualValues(t, 10, decoded.EdgeType)
	require.EqualValues(t, -5, decoded.Rank)
	require.Equal(t, dst, decoded.Dst)

	in := InEdgeKey(7, src, 10, -5, dst)
	decodedIn, err := DecodeEdgeKey(in, 8)
	require.NoError(t, err)
	require.EqualValues(t, -10, decodedIn.EdgeType)
	require.Equal(t, dst, decodedIn.Src)
	require.Equal(t, src, decodedIn.Dst)
}

func TestVertexRowKeyDoesNotCollideWithEdgeKeys(t *testing.T) {
	vid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	vkey := VertexRowKey(3, vid, 7)
	ekey := OutEdgeKey(3, vid, 10, 5, vid)
	require.NotEqual(t, vkey[0], ekey[0])
}

func TestHashToPartStable(t *testing.T) {
	vid := []byte("vertex-A")
	p1 := HashToPart(vid, 16)
	p2 := HashToPart(vid, 16)
	require.Equal(t, p1, p2)
	require.GreaterOrEqual(t, p1, metapb.PartID(1))
	require.LessOrEqual(t, p1, metapb.PartID(16))
}

func TestHashToPartCoversFullOneBasedRange(t *testing.T) {
	const numParts = 8
	seen := make(map[metapb.PartID]bool)
	for i := 0; i < 10000; i++ {
		vid := []byte{byte(i), byte(i >> 8)}
		part := HashToPart(vid, numParts)
		require.GreaterOrEqual(t, part, metapb.PartID(1))
		require.LessOrEqual(t, part, metapb.PartID(numParts))
		seen[part] = true
	}
	require.Len(t, seen, numParts)
}
