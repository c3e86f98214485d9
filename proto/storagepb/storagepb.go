// Package storagepb holds the wire types for the storage daemon's client
// surface: atomic edge writes, index lookups, and vertex updates, plus the
// fixed KV result-code and processor error-code tables every response is
// built from.
package storagepb

import "github.com/baudgraph/graphd/proto/metapb"

// ResultCode is what the replicated KV store hands back to a processor
// for a single partition operation.
type ResultCode int32

const (
	ResultSucceeded ResultCode = iota
	ResultLeaderChanged
	ResultSpaceNotFound
	ResultPartNotFound
	ResultConsensusError
	ResultCheckpointError
	ResultWriteBlocked
	ResultPartialResult
	ResultUnknown
)

func (c ResultCode) String() string {
	switch c {
	case ResultSucceeded:
		return "Succeeded"
	case ResultLeaderChanged:
		return "LeaderChanged"
	case ResultSpaceNotFound:
		return "SpaceNotFound"
	case ResultPartNotFound:
		return "PartNotFound"
	case ResultConsensusError:
		return "ConsensusError"
	case ResultCheckpointError:
		return "CheckpointError"
	case ResultWriteBlocked:
		return "WriteBlocked"
	case ResultPartialResult:
		return "PartialResult"
	default:
		return "Unknown"
	}
}

// ErrorCode is the processor-facing error surfaced in a PartitionResult.
type ErrorCode int32

const (
	ErrSucceeded ErrorCode = iota
	ErrLeaderChanged
	ErrSpaceNotFound
	ErrPartNotFound
	ErrConsensusError
	ErrFailedToCheckpoint
	ErrCheckpointBlocked
	ErrPartialResult
	ErrUnknown

	// Row-encoder faults, edge context.
	ErrEdgePropNotFound
	ErrNotNullable
	ErrDataTypeMismatch
	ErrFieldUnset
	ErrOutOfRange
	ErrInvalidFieldValue

	// Row-encoder faults, vertex context.
	ErrTagPropNotFound

	// Atomic edge writer specific.
	ErrInvalidSpaceVidLen

	// Lookup planner specific.
	ErrIndexNotFound
	ErrSchemaNotFound
	ErrInvalidOperation
)

func (c ErrorCode) String() string {
	switch c {
	case ErrSucceeded:
		return "Succeeded"
	case ErrLeaderChanged:
		return "LeaderChanged"
	case ErrSpaceNotFound:
		return "SpaceNotFound"
	case ErrPartNotFound:
		return "PartNotFound"
	case ErrConsensusError:
		return "ConsensusError"
	case ErrFailedToCheckpoint:
		return "FailedToCheckpoint"
	case ErrCheckpointBlocked:
		return "CheckpointBlocked"
	case ErrPartialResult:
		return "PartialResult"
	case ErrEdgePropNotFound:
		return "EdgePropNotFound"
	case ErrTagPropNotFound:
		return "TagPropNotFound"
	case ErrNotNullable:
		return "NotNullable"
	case ErrDataTypeMismatch:
		return "DataTypeMismatch"
	case ErrFieldUnset:
		return "FieldUnset"
	case ErrOutOfRange:
		return "OutOfRange"
	case ErrInvalidFieldValue:
		return "InvalidFieldValue"
	case ErrInvalidSpaceVidLen:
		return "InvalidSpaceVidLen"
	case ErrIndexNotFound:
		return "IndexNotFound"
	case ErrSchemaNotFound:
		return "SchemaNotFound"
	case ErrInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

// TranslateResultCode implements the fixed KV-code -> processor-error
// table. Anything not explicitly listed maps to ErrUnknown.
func TranslateResultCode(c ResultCode) ErrorCode {
	switch c {
	case ResultSucceeded:
		return ErrSucceeded
	case ResultLeaderChanged:
		return ErrLeaderChanged
	case ResultSpaceNotFound:
		return ErrSpaceNotFound
	case ResultPartNotFound:
		return ErrPartNotFound
	case ResultConsensusError:
		return ErrConsensusError
	case ResultCheckpointError:
		return ErrFailedToCheckpoint
	case ResultWriteBlocked:
		return ErrCheckpointBlocked
	case ResultPartialResult:
		return ErrPartialResult
	default:
		return ErrUnknown
	}
}

// PartitionResult is the per-partition entry in a response's failure
// list. An empty failure list means the request fully succeeded.
type PartitionResult struct {
	PartID metapb.PartID
	Code   ErrorCode
	Leader *metapb.HostAddr // set only when Code == ErrLeaderChanged
}

// ExecResponse is the common response shape for mutating RPCs.
type ExecResponse struct {
	Failures []PartitionResult
}

// Succeeded reports whether the request fully succeeded (no per-
// partition failures at all).
func (r *ExecResponse) Succeeded() bool {
	return len(r.Failures) == 0
}

// KVPair is a single key/value to write.
type KVPair struct {
	Key   []byte
	Value []byte
}

// EdgeKey identifies one direction of one edge.
type EdgeKey struct {
	Src      []byte
	EdgeType int32 // signed: positive out-edge, negative in-edge
	Rank     int64
	Dst      []byte
}

// NewEdge is one edge to add, keyed on its out-edge direction.
type NewEdge struct {
	Key   EdgeKey
	Props [][]byte
}

// AddEdgesRequest groups new edges by the local partition they were
// submitted against.
type AddEdgesRequest struct {
	ClusterID uint64
	SpaceID   metapb.SpaceID
	PropNames []string
	Parts     map[metapb.PartID][]NewEdge
}

// GetClusterID lets the grpc cluster-id guard check AddEdgesRequest.
func (r *AddEdgesRequest) GetClusterID() uint64 { return r.ClusterID }

// UpdateVertexRequest updates one vertex's tag row.
type UpdateVertexRequest struct {
	ClusterID uint64
	SpaceID   metapb.SpaceID
	PartID    metapb.PartID
	VertexID  []byte
	TagID     metapb.SchemaID
	PropNames []string
	Props     [][]byte
}

// GetClusterID lets the grpc cluster-id guard check UpdateVertexRequest.
func (r *UpdateVertexRequest) GetClusterID() uint64 { return r.ClusterID }

// UpdateResponse is returned by UpdateVertex.
type UpdateResponse struct {
	Failures []PartitionResult
}

// ColumnHint narrows one indexed column: exactly one of the three modes
// is populated.
type ColumnHint struct {
	Column string
	Equal  []byte
	Begin  []byte // range mode: inclusive lower bound
	End    []byte // range mode: exclusive upper bound
	In     [][]byte
}

// IndexQueryContext is one leg of a lookup request, evaluated against a
// single index.
type IndexQueryContext struct {
	IndexID uint32
	Hints   []ColumnHint
	Filter  []byte // opaque serialized filter expression, nil if none
}

// LookupIndexRequest asks the planner to compile and run an index scan.
type LookupIndexRequest struct {
	ClusterID     uint64
	SpaceID       metapb.SpaceID
	IsEdge        bool
	TagOrEdgeID   metapb.SchemaID
	Contexts      []IndexQueryContext
	ReturnColumns []string
}

// GetClusterID lets the grpc cluster-id guard check LookupIndexRequest.
func (r *LookupIndexRequest) GetClusterID() uint64 { return r.ClusterID }

// Row is one output row of a lookup: the fixed leading columns followed
// by the requested yield columns, in request order.
type Row struct {
	Columns []string
	Values  [][]byte
}

// LookupIndexResponse carries the aggregated result set plus any
// per-partition failures encountered while fetching/filtering rows.
type LookupIndexResponse struct {
	Rows     []Row
	Failures []PartitionResult
}
