package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
)

type fakeIterator struct {
	keys []string
	pos  int
}

func (it *fakeIterator) Next() bool {
	it.pos++
	return it.pos <= len(it.keys)
}
func (it *fakeIterator) Key() []byte      { return []byte(it.keys[it.pos-1]) }
func (it *fakeIterator) Value() []byte    { return nil }
func (it *fakeIterator) Bookmark() []byte { return it.Key() }
func (it *fakeIterator) Err() error       { return nil }
func (it *fakeIterator) Close()           {}

type fakeCatalog struct {
	index   *metapb.IndexItem
	columns []metapb.ColumnDef
	hasCols bool
}

func (c *fakeCatalog) Index(spaceID metapb.SpaceID, indexID uint32) (*metapb.IndexItem, bool) {
	if c.index == nil {
		return nil, false
	}
	return c.index, true
}
func (c *fakeCatalog) SchemaColumns(spaceID metapb.SpaceID, schemaID metapb.SchemaID, isEdge bool) ([]metapb.ColumnDef, bool) {
	return c.columns, c.hasCols
}

type fakeBackend struct {
	keys      []string
	fetchRows map[string]string
}

func (b *fakeBackend) ScanIndex(spaceID metapb.SpaceID, ctx storagepb.IndexQueryContext) (kv.Iterator, error) {
	return &fakeIterator{keys: b.keys}, nil
}
func (b *fakeBackend) FetchRow(spaceID metapb.SpaceID, isEdge bool, indexKey []byte) ([]byte, []byte, error) {
	row := b.fetchRows[string(indexKey)]
	return indexKey, []byte(row), nil
}
func (b *fakeBackend) EvalFilter(filter []byte) FilterFunc {
	return func(key, row []byte) (bool, error) {
		return string(key) == string(filter), nil
	}
}
func (b *fakeBackend) Project(spaceID metapb.SpaceID, isEdge bool, indexKey, row []byte, yield []string) ([]string, [][]byte, error) {
	cols := FixedLeadingColumns(isEdge)
	cols = append(append([]string{}, cols...), yield...)
	vals := make([][]byte, len(cols))
	for i := range vals {
		vals[i] = indexKey
	}
	return cols, vals, nil
}

func vertexIndex() *metapb.IndexItem {
	return &metapb.IndexItem{
		Fields: []metapb.ColumnDef{{Name: "c1"}, {Name: "c2"}},
	}
}

func TestPlanShapeNoDataNoFilter(t *testing.T) {
	catalog := &fakeCatalog{index: vertexIndex()}
	backend := &fakeBackend{keys: []string{"k1", "k2"}}
	req := &storagepb.LookupIndexRequest{
		Contexts:      []storagepb.IndexQueryContext{{IndexID: 1}},
		ReturnColumns: []string{"c1", "c2"},
	}

	p, err := Build(catalog, backend, req)
	require.NoError(t, err)
	rows, err := p.Run()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"_vid", "c1", "c2"}, rows[0].Columns)
}

func TestPlanShapeNeedsData(t *testing.T) {
	catalog := &fakeCatalog{index: vertexIndex(), columns: []metapb.ColumnDef{{Name: "c3"}}, hasCols: true}
	backend := &fakeBackend{keys: []string{"k1"}, fetchRows: map[string]string{"k1": "row1"}}
	req := &storagepb.LookupIndexRequest{
		Contexts:      []storagepb.IndexQueryContext{{IndexID: 1}},
		ReturnColumns: []string{"c3"},
	}

	p, err := Build(catalog, backend, req)
	require.NoError(t, err)
	rows, err := p.Run()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPlanShapeNeedsDataMissingSchema(t *testing.T) {
	catalog := &fakeCatalog{index: vertexIndex(), hasCols: false}
	backend := &fakeBackend{keys: []string{"k1"}}
	req := &storagepb.LookupIndexRequest{
		Contexts:      []storagepb.IndexQueryContext{{IndexID: 1}},
		ReturnColumns: []string{"c3"},
	}

	_, err := Build(catalog, backend, req)
	require.Error(t, err)
	perr, ok := err.(*PlannerError)
	require.True(t, ok)
	require.Equal(t, storagepb.ErrSchemaNotFound, perr.Code)
}

func TestPlanShapeNeedsFilterOnly(t *testing.T) {
	catalog := &fakeCatalog{index: vertexIndex()}
	backend := &fakeBackend{keys: []string{"k1", "k2"}}
	req := &storagepb.LookupIndexRequest{
		Contexts:      []storagepb.IndexQueryContext{{IndexID: 1, Filter: []byte("k2")}},
		ReturnColumns: []string{"c1"},
	}

	p, err := Build(catalog, backend, req)
	require.NoError(t, err)
	rows, err := p.Run()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPlanIndexNotFound(t *testing.T) {
	catalog := &fakeCatalog{}
	backend := &fakeBackend{}
	req := &storagepb.LookupIndexRequest{Contexts: []storagepb.IndexQueryContext{{IndexID: 99}}}

	_, err := Build(catalog, backend, req)
	require.Error(t, err)
	perr, ok := err.(*PlannerError)
	require.True(t, ok)
	require.Equal(t, storagepb.ErrIndexNotFound, perr.Code)
}

func TestPlanEmptyContexts(t *testing.T) {
	_, err := Build(&fakeCatalog{}, &fakeBackend{}, &storagepb.LookupIndexRequest{})
	require.Equal(t, errEmptyContexts, err)
}
