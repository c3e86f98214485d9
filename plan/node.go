// Package plan compiles a LookupIndexRequest into a tree of pull-based
// execution nodes: the lookup planner described as C5.
package plan

import (
	"github.com/baudgraph/graphd/kv"
)

// Node is a pure sequential producer. The parent pulls; Next returns
// ok=false at end-of-stream (not an error) or when err is non-nil.
type Node interface {
	Next() (key []byte, ok bool, err error)
}

// ScanNode walks an index's key range in order, yielding raw index
// keys for its children to interpret.
type ScanNode struct {
	it kv.Iterator
}

func NewScanNode(it kv.Iterator) *ScanNode {
	return &ScanNode{it: it}
}

func (n *ScanNode) Next() ([]byte, bool, error) {
	if !n.it.Next() {
		return nil, false, n.it.Err()
	}
	return n.it.Key(), true, nil
}

// fetchFunc resolves an index key to its base row, used by both
// IndexEdge and IndexVertex (they differ only in which row they fetch).
type fetchFunc func(indexKey []byte) (rowKey, row []byte, err error)

// FetchNode translates an index row to its base (vertex or edge) row
// by constructing the row key and issuing a kvstore Get, then decoding
// via the schema. IndexEdge/IndexVertex in the spec are both
// instances of this node, parameterized by fetchFunc.
type FetchNode struct {
	child Node
	fetch fetchFunc

	lastRow []byte
}

func NewFetchNode(child Node, fetch fetchFunc) *FetchNode {
	return &FetchNode{child: child, fetch: fetch}
}

func (n *FetchNode) Next() ([]byte, bool, error) {
	key, ok, err := n.child.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	rowKey, row, err := n.fetch(key)
	if err != nil {
		return nil, false, err
	}
	n.lastRow = row
	return rowKey, true, nil
}

// Row returns the base row fetched by the most recent Next call.
func (n *FetchNode) Row() []byte { return n.lastRow }

// FilterFunc evaluates a filter expression against an in-scope row.
type FilterFunc func(key, row []byte) (bool, error)

// FilterNode drops rows that don't satisfy its filter.
type FilterNode struct {
	child  Node
	row    func() []byte // nil when no upstream FetchNode (index-only filter)
	filter FilterFunc
}

func NewFilterNode(child Node, row func() []byte, filter FilterFunc) *FilterNode {
	return &FilterNode{child: child, row: row, filter: filter}
}

func (n *FilterNode) Next() ([]byte, bool, error) {
	for {
		key, ok, err := n.child.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		var row []byte
		if n.row != nil {
			row = n.row()
		}
		keep, err := n.filter(key, row)
		if err != nil {
			return nil, false, err
		}
		if keep {
			return key, true, nil
		}
	}
}

// OutputNode projects a row into the fixed output column order: for
// edges [_src, _ranking, _dst, <yield...>], for vertices [_vid,
// <yield...>].
type OutputNode struct {
	child   Node
	project func(key []byte) ([]string, [][]byte, error)
}

func NewOutputNode(child Node, project func(key []byte) ([]string, [][]byte, error)) *OutputNode {
	return &OutputNode{child: child, project: project}
}

func (n *OutputNode) Next() (columns []string, values [][]byte, ok bool, err error) {
	key, ok, err := n.child.Next()
	if err != nil || !ok {
		return nil, nil, ok, err
	}
	columns, values, err = n.project(key)
	if err != nil {
		return nil, nil, false, err
	}
	return columns, values, true, nil
}

// AggregateNode is the single terminal node every context's output
// feeds into; it pulls each context's OutputNode to exhaustion and
// writes into a shared DataSet. It is the only node touched from more
// than one logical producer, but since contexts are pulled strictly
// sequentially (the planner never parallelizes across contexts) it
// needs no locking.
type AggregateNode struct {
	rows []Row
}

// Row is one emitted row, column-name/value pairs in output order.
type Row struct {
	Columns []string
	Values  [][]byte
}

func NewAggregateNode() *AggregateNode {
	return &AggregateNode{}
}

// DrainFrom pulls out to exhaustion, appending every row it produces.
func (a *AggregateNode) DrainFrom(out *OutputNode) error {
	for {
		cols, vals, ok, err := out.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		a.rows = append(a.rows, Row{Columns: cols, Values: vals})
	}
}

// Rows returns the accumulated DataSet.
func (a *AggregateNode) Rows() []Row { return a.rows }

// FixedLeadingColumns returns the spec-fixed leading output columns,
// ahead of whatever the caller asked to yield: [_src,_ranking,_dst]
// for edges, [_vid] for vertices.
func FixedLeadingColumns(isEdge bool) []string {
	if isEdge {
		return []string{"_src", "_ranking", "_dst"}
	}
	return []string{"_vid"}
}
