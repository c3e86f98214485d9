package schema

import "github.com/baudgraph/graphd/proto/storagepb"

// TranslateWriteFault implements the fixed encoder-fault -> processor
// error table, which differs by whether the row being written is an
// edge or a vertex (tag) row.
func TranslateWriteFault(fault WriteFault, isEdge bool) storagepb.ErrorCode {
	switch fault {
	case FaultUnknownField:
		if isEdge {
			return storagepb.ErrEdgePropNotFound
		}
		return storagepb.ErrTagPropNotFound
	case FaultNotNullable:
		return storagepb.ErrNotNullable
	case FaultTypeMismatch:
		return storagepb.ErrDataTypeMismatch
	case FaultFieldUnset:
		return storagepb.ErrFieldUnset
	case FaultOutOfRange:
		return storagepb.ErrOutOfRange
	case FaultIncorrectValue:
		return storagepb.ErrInvalidFieldValue
	default:
		return storagepb.ErrSucceeded
	}
}
