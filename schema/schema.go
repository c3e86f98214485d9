// Package schema implements the row encoder/decoder contract tag and
// edge rows are written through: encode(schema, props) -> bytes, with a
// fixed set of WriteFault reasons a malformed prop list can fail with.
package schema

import (
	"encoding/binary"
	"fmt"

	"github.com/baudgraph/graphd/proto/metapb"
)

// WriteFault is the reason RowWriterV2.Write rejected a prop list.
type WriteFault int32

const (
	FaultNone WriteFault = iota
	FaultUnknownField
	FaultNotNullable
	FaultTypeMismatch
	FaultFieldUnset
	FaultOutOfRange
	FaultIncorrectValue
)

func (f WriteFault) String() string {
	switch f {
	case FaultUnknownField:
		return "UnknownField"
	case FaultNotNullable:
		return "NotNullable"
	case FaultTypeMismatch:
		return "TypeMismatch"
	case FaultFieldUnset:
		return "FieldUnset"
	case FaultOutOfRange:
		return "OutOfRange"
	case FaultIncorrectValue:
		return "IncorrectValue"
	default:
		return "None"
	}
}

// WriteFaultError pairs a fault with the offending column name.
type WriteFaultError struct {
	Fault  WriteFault
	Column string
}

func (e *WriteFaultError) Error() string {
	return fmt.Sprintf("%s: column %q", e.Fault, e.Column)
}

// RowWriterV2 encodes a named prop list against exactly one schema
// version. Every encoded value starts with a one-byte tag that marks it
// null or set; the tag carries no type, so decoding relies on the
// schema's column order.
type RowWriterV2 struct {
	version metapb.SchemaVersion
	byName  map[string]metapb.ColumnDef
}

// NewRowWriterV2 binds a writer to one immutable schema version.
func NewRowWriterV2(version metapb.SchemaVersion) *RowWriterV2 {
	w := &RowWriterV2{version: version, byName: make(map[string]metapb.ColumnDef, len(version.Columns))}
	for _, c := range version.Columns {
		w.byName[c.Name] = c
	}
	return w
}

const (
	tagNull byte = 0x00
	tagSet  byte = 0x01
)

// Write encodes propNames/props, in schema column order, into one row.
// Columns absent from propNames use their default (or null, if
// nullable); a schema column with neither a supplied value nor a
// default and no nullable flag is FaultFieldUnset.
func (w *RowWriterV2) Write(propNames []string, props [][]byte) ([]byte, *WriteFaultError) {
	if len(propNames) != len(props) {
		return nil, &WriteFaultError{Fault: FaultIncorrectValue, Column: ""}
	}
	supplied := make(map[string][]byte, len(propNames))
	for i, name := range propNames {
		if _, ok := w.byName[name]; !ok {
			return nil, &WriteFaultError{Fault: FaultUnknownField, Column: name}
		}
		supplied[name] = props[i]
	}

	buf := make([]byte, 0, 64)
	for _, col := range w.version.Columns {
		val, ok := supplied[col.Name]
		if !ok {
			val = col.Default
		}
		if val == nil {
			if !col.Nullable {
				return nil, &WriteFaultError{Fault: FaultFieldUnset, Column: col.Name}
			}
			buf = append(buf, tagNull)
			continue
		}
		if fault := validate(col, val); fault != FaultNone {
			return nil, &WriteFaultError{Fault: fault, Column: col.Name}
		}
		buf = append(buf, tagSet)
		buf = appendLenPrefixed(buf, val)
	}
	return buf, nil
}

// Decode splits an encoded row back into per-column values, nil for a
// column written as null.
func (w *RowWriterV2) Decode(row []byte) ([][]byte, error) {
	out := make([][]byte, len(w.version.Columns))
	rest := row
	for i := range w.version.Columns {
		if len(rest) == 0 {
			return nil, fmt.Errorf("schema: truncated row at column %d", i)
		}
		tag := rest[0]
		rest = rest[1:]
		if tag == tagNull {
			continue
		}
		val, next, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		out[i] = val
		rest = next
	}
	return out, nil
}

func validate(col metapb.ColumnDef, val []byte) WriteFault {
	switch col.Type {
	case metapb.ColumnTypeInt:
		if len(val) != 8 {
			return FaultTypeMismatch
		}
	case metapb.ColumnTypeFloat:
		if len(val) != 8 {
			return FaultTypeMismatch
		}
	case metapb.ColumnTypeBool:
		if len(val) != 1 {
			return FaultTypeMismatch
		}
	case metapb.ColumnTypeString, metapb.ColumnTypeList:
		// any length is acceptable
	case metapb.ColumnTypeDate, metapb.ColumnTypeDatetime:
		if len(val) != 8 {
			return FaultOutOfRange
		}
	}
	return FaultNone
}

func appendLenPrefixed(buf, val []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(val)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, val...)
}

func readLenPrefixed(b []byte) (val, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("schema: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, fmt.Errorf("schema: truncated value")
	}
	return b[:n], b[n:], nil
}
