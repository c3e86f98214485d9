package server

import (
	"sync"

	"github.com/baudgraph/graphd/proto/metapb"
)

// Catalog caches the schema and index metadata the meta service owns,
// so lookups and row encoding never round-trip to the meta partition
// on the hot path. The storage daemon refreshes it from the meta
// service's schema/index records; this package only holds the cache.
type Catalog struct {
	mu      sync.RWMutex
	schemas map[metapb.SpaceID]map[metapb.SchemaID]*metapb.Schema
	indexes map[metapb.SpaceID]map[uint32]*metapb.IndexItem
	vidLens map[metapb.SpaceID]int
}

func NewCatalog() *Catalog {
	return &Catalog{
		schemas: make(map[metapb.SpaceID]map[metapb.SchemaID]*metapb.Schema),
		indexes: make(map[metapb.SpaceID]map[uint32]*metapb.IndexItem),
		vidLens: make(map[metapb.SpaceID]int),
	}
}

func (c *Catalog) AddSchema(space metapb.SpaceID, s *metapb.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schemas[space] == nil {
		c.schemas[space] = make(map[metapb.SchemaID]*metapb.Schema)
	}
	c.schemas[space][s.ID] = s
}

func (c *Catalog) AddIndex(space metapb.SpaceID, idx *metapb.IndexItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexes[space] == nil {
		c.indexes[space] = make(map[uint32]*metapb.IndexItem)
	}
	c.indexes[space][idx.IndexID] = idx
}

func (c *Catalog) SetVidLen(space metapb.SpaceID, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vidLens[space] = n
}

// Index implements plan.IndexCatalog.
func (c *Catalog) Index(space metapb.SpaceID, indexID uint32) (*metapb.IndexItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[space][indexID]
	return idx, ok
}

// SchemaColumns implements plan.IndexCatalog.
func (c *Catalog) SchemaColumns(space metapb.SpaceID, schemaID metapb.SchemaID, isEdge bool) ([]metapb.ColumnDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[space][schemaID]
	if !ok || s.IsEdge != isEdge {
		return nil, false
	}
	return s.Latest().Columns, true
}

// indexIDs returns every index id registered for space, in no
// particular order.
func (c *Catalog) indexIDs(space metapb.SpaceID) []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uint32, 0, len(c.indexes[space]))
	for id := range c.indexes[space] {
		ids = append(ids, id)
	}
	return ids
}

func (c *Catalog) schema(space metapb.SpaceID, schemaID metapb.SchemaID) (*metapb.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[space][schemaID]
	return s, ok
}

// VidLen implements txn.VidLenResolver.
func (c *Catalog) VidLen(space metapb.SpaceID) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.vidLens[space]
	return n, ok
}
