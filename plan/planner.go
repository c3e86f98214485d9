package plan

import (
	"fmt"

	"github.com/baudgraph/graphd/kv"
	"github.com/baudgraph/graphd/proto/metapb"
	"github.com/baudgraph/graphd/proto/storagepb"
)

// PlannerError is a planner-stage failure, distinct from a runtime
// (Next-time) execution error.
type PlannerError struct {
	Code storagepb.ErrorCode
	Msg  string
}

func (e *PlannerError) Error() string { return e.Msg }

func errIndexNotFound(indexID uint32) *PlannerError {
	return &PlannerError{Code: storagepb.ErrIndexNotFound, Msg: fmt.Sprintf("plan: no index %d in space", indexID)}
}

func errSchemaNotFound(schemaID metapb.SchemaID) *PlannerError {
	return &PlannerError{Code: storagepb.ErrSchemaNotFound, Msg: fmt.Sprintf("plan: schema %d not found", schemaID)}
}

var errEmptyContexts = &PlannerError{Code: storagepb.ErrInvalidOperation, Msg: "plan: request has no index query contexts"}

// IndexCatalog resolves index and schema metadata for a space. The
// storage daemon implements this against its cached meta records.
type IndexCatalog interface {
	Index(spaceID metapb.SpaceID, indexID uint32) (*metapb.IndexItem, bool)
	SchemaColumns(spaceID metapb.SpaceID, schemaID metapb.SchemaID, isEdge bool) ([]metapb.ColumnDef, bool)
}

// Backend supplies the primitives a plan's nodes are built from: the
// index scan iterator, the base-row fetch, and the filter evaluator.
// The storage daemon binds these against its real KV store and
// expression evaluator; tests bind them against fakes.
type Backend interface {
	ScanIndex(spaceID metapb.SpaceID, ctx storagepb.IndexQueryContext) (kv.Iterator, error)
	FetchRow(spaceID metapb.SpaceID, isEdge bool, indexKey []byte) (rowKey, row []byte, err error)
	EvalFilter(filter []byte) FilterFunc
	// Project decodes a fetched (or index-only) row into the fixed
	// leading columns plus the requested yield columns.
	Project(spaceID metapb.SpaceID, isEdge bool, indexKey, row []byte, yield []string) ([]string, [][]byte, error)
}

// Plan is a compiled, not-yet-run lookup: one output node per context
// plus the shared terminal aggregate.
type Plan struct {
	outputs   []*OutputNode
	Aggregate *AggregateNode
}

// Run pulls every context's output to exhaustion, in order (the
// planner never parallelizes across contexts), and returns the
// accumulated rows.
func (p *Plan) Run() ([]Row, error) {
	for _, out := range p.outputs {
		if err := p.Aggregate.DrainFrom(out); err != nil {
			return nil, err
		}
	}
	return p.Aggregate.Rows(), nil
}

// Build compiles req into a Plan, selecting one of the four sub-plan
// shapes per context based on needData/needFilter.
func Build(catalog IndexCatalog, backend Backend, req *storagepb.LookupIndexRequest) (*Plan, error) {
	if len(req.Contexts) == 0 {
		return nil, errEmptyContexts
	}

	plan := &Plan{Aggregate: NewAggregateNode()}

	for _, qctx := range req.Contexts {
		index, ok := catalog.Index(req.SpaceID, qctx.IndexID)
		if !ok {
			return nil, errIndexNotFound(qctx.IndexID)
		}

		needData := needsDataFetch(index, req.ReturnColumns)
		needFilter := len(qctx.Filter) > 0

		if needData {
			if _, ok := catalog.SchemaColumns(req.SpaceID, req.TagOrEdgeID, req.IsEdge); !ok {
				return nil, errSchemaNotFound(req.TagOrEdgeID)
			}
		}

		it, err := backend.ScanIndex(req.SpaceID, qctx)
		if err != nil {
			return nil, err
		}

		var cur Node = NewScanNode(it)
		var rowOf func() []byte

		if needData {
			fetch := NewFetchNode(cur, func(indexKey []byte) ([]byte, []byte, error) {
				return backend.FetchRow(req.SpaceID, req.IsEdge, indexKey)
			})
			cur = fetch
			rowOf = fetch.Row
		}

		if needFilter {
			cur = NewFilterNode(cur, rowOf, backend.EvalFilter(qctx.Filter))
		}

		out := NewOutputNode(cur, func(key []byte) ([]string, [][]byte, error) {
			var row []byte
			if rowOf != nil {
				row = rowOf()
			}
			return backend.Project(req.SpaceID, req.IsEdge, key, row, req.ReturnColumns)
		})
		plan.outputs = append(plan.outputs, out)
	}

	return plan, nil
}

// needsDataFetch is true iff any requested return column is not
// present in the index's own field list, i.e. the base row must be
// fetched to answer the query.
func needsDataFetch(index *metapb.IndexItem, returnColumns []string) bool {
	inIndex := make(map[string]bool, len(index.Fields))
	for _, f := range index.Fields {
		inIndex[f.Name] = true
	}
	for _, col := range returnColumns {
		if !inIndex[col] {
			return true
		}
	}
	return false
}
