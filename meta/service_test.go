package meta

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/proto/metapb"
)

func TestBootstrapRootUserIdempotent(t *testing.T) {
	leader := metapb.HostAddr{Host: "m1", Port: 1}
	store := newFakeMetaStore(leader)
	svc := NewService(store, NewClusterIdentity(store, leader))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, svc.BootstrapRootUser(ctx))
	first := store.data[metapb.RootUserPrefix]
	require.NoError(t, svc.BootstrapRootUser(ctx))
	require.Equal(t, first, store.data[metapb.RootUserPrefix])
}

type fakeSchemaIterator struct {
	keys, vals []string
	pos        int
}

func (it *fakeSchemaIterator) Next() bool { it.pos++; return it.pos <= len(it.keys) }
func (it *fakeSchemaIterator) Key() []byte   { return []byte(it.keys[it.pos-1]) }
func (it *fakeSchemaIterator) Value() []byte { return []byte(it.vals[it.pos-1]) }
func (it *fakeSchemaIterator) Bookmark() []byte { return it.Key() }
func (it *fakeSchemaIterator) Err() error       { return nil }
func (it *fakeSchemaIterator) Close()           {}

func TestUpgradeSchemaV1ToV2Idempotent(t *testing.T) {
	leader := metapb.HostAddr{Host: "m1", Port: 1}
	store := newFakeMetaStore(leader)
	svc := NewService(store, NewClusterIdentity(store, leader))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	it := &fakeSchemaIterator{keys: []string{schemaV1Prefix + "tag1"}, vals: []string{"legacy"}}
	require.NoError(t, svc.UpgradeSchemaV1ToV2(ctx, it))
	v2, ok := store.data[schemaV2Prefix+"tag1"]
	require.True(t, ok)
	require.Equal(t, []byte{1, 'l', 'e', 'g', 'a', 'c', 'y'}, v2)

	it2 := &fakeSchemaIterator{keys: []string{schemaV1Prefix + "tag1"}, vals: []string{"legacy"}}
	require.NoError(t, svc.UpgradeSchemaV1ToV2(ctx, it2))
	require.Equal(t, v2, store.data[schemaV2Prefix+"tag1"])
}
