package meta

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/proto/metapb"
)

func TestRegisterAndGetPartsAlloc(t *testing.T) {
	leader := metapb.HostAddr{Host: "m1", Port: 1}
	store := newFakeMetaStore(leader)
	svc := NewService(store, NewClusterIdentity(store, leader))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, found, err := svc.GetPartsAlloc(ctx, 7)
	require.NoError(t, err)
	require.False(t, found)

	alloc := PartsAlloc{Space: 7, Parts: []metapb.Partition{{Part: 1}, {Part: 2}}}
	require.NoError(t, svc.RegisterParts(ctx, alloc))

	got, found, err := svc.GetPartsAlloc(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, alloc, got)
}

func TestRegisterPartsReplacesExistingRecord(t *testing.T) {
	leader := metapb.HostAddr{Host: "m1", Port: 1}
	store := newFakeMetaStore(leader)
	svc := NewService(store, NewClusterIdentity(store, leader))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, svc.RegisterParts(ctx, PartsAlloc{Space: 7, Parts: []metapb.Partition{{Part: 1}}}))
	require.NoError(t, svc.RegisterParts(ctx, PartsAlloc{Space: 7, Parts: []metapb.Partition{{Part: 1}, {Part: 2}, {Part: 3}}}))

	ids, err := svc.ListParts(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []metapb.PartID{1, 2, 3}, ids)
}

func TestListPartsUnknownSpace(t *testing.T) {
	leader := metapb.HostAddr{Host: "m1", Port: 1}
	store := newFakeMetaStore(leader)
	svc := NewService(store, NewClusterIdentity(store, leader))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ids, err := svc.ListParts(ctx, 99)
	require.NoError(t, err)
	require.Nil(t, ids)
}
