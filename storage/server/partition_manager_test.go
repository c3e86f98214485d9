package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/proto/metapb"
)

func TestPartitionManagerAddAndLookup(t *testing.T) {
	pm := NewPartitionManager()
	peers := []metapb.HostAddr{{Host: "h1", Port: 1}, {Host: "h2", Port: 2}}

	require.NoError(t, pm.AddPart(1, 0, peers))
	require.NoError(t, pm.AddPart(1, 1, peers))

	require.Equal(t, []metapb.PartID{0, 1}, pm.Parts(1))

	got, err := pm.Peers(1, 0)
	require.NoError(t, err)
	require.Equal(t, peers, got)
}

func TestPartitionManagerUnknownPartition(t *testing.T) {
	pm := NewPartitionManager()
	_, err := pm.Peers(1, 9)
	require.Error(t, err)
	require.IsType(t, &ErrPartNotFound{}, err)
}

func TestPartitionManagerAddIsIdempotent(t *testing.T) {
	pm := NewPartitionManager()
	peers := []metapb.HostAddr{{Host: "h1", Port: 1}}

	require.NoError(t, pm.AddPart(1, 0, peers))
	require.NoError(t, pm.AddPart(1, 0, peers))
	require.Equal(t, []metapb.PartID{0}, pm.Parts(1))
}

func TestPartitionManagerConflictingPeersRejected(t *testing.T) {
	pm := NewPartitionManager()
	require.NoError(t, pm.AddPart(1, 0, []metapb.HostAddr{{Host: "h1", Port: 1}}))
	err := pm.AddPart(1, 0, []metapb.HostAddr{{Host: "h2", Port: 2}})
	require.Error(t, err)
}
