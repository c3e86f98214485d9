package schema

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baudgraph/graphd/proto/metapb"
)

func testVersion() metapb.SchemaVersion {
	return metapb.SchemaVersion{
		Version: 1,
		Columns: []metapb.ColumnDef{
			{Name: "c1", Type: metapb.ColumnTypeInt},
			{Name: "c2", Type: metapb.ColumnTypeString, Nullable: true},
			{Name: "c3", Type: metapb.ColumnTypeInt, Default: encodeInt(7)},
		},
	}
}

func encodeInt(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func TestRowWriterRoundTrip(t *testing.T) {
	w := NewRowWriterV2(testVersion())
	props := [][]byte{encodeInt(1), []byte("hello")}
	row, fault := w.Write([]string{"c1", "c2"}, props)
	require.Nil(t, fault)

	decoded, err := w.Decode(row)
	require.NoError(t, err)
	require.Equal(t, encodeInt(1), decoded[0])
	require.Equal(t, []byte("hello"), decoded[1])
	require.Equal(t, encodeInt(7), decoded[2]) // default applied
}

func TestRowWriterUnknownField(t *testing.T) {
	w := NewRowWriterV2(testVersion())
	_, fault := w.Write([]string{"nope"}, [][]byte{{1}})
	require.NotNil(t, fault)
	require.Equal(t, FaultUnknownField, fault.Fault)
}

func TestRowWriterFieldUnset(t *testing.T) {
	w := NewRowWriterV2(testVersion())
	_, fault := w.Write(nil, nil)
	require.NotNil(t, fault)
	require.Equal(t, FaultFieldUnset, fault.Fault)
	require.Equal(t, "c1", fault.Column)
}

func TestRowWriterTypeMismatch(t *testing.T) {
	w := NewRowWriterV2(testVersion())
	_, fault := w.Write([]string{"c1", "c2"}, [][]byte{{1, 2, 3}, []byte("x")})
	require.NotNil(t, fault)
	require.Equal(t, FaultTypeMismatch, fault.Fault)
}

func TestRowWriterNullable(t *testing.T) {
	w := NewRowWriterV2(testVersion())
	row, fault := w.Write([]string{"c1"}, [][]byte{encodeInt(1)})
	require.Nil(t, fault)

	decoded, err := w.Decode(row)
	require.NoError(t, err)
	require.Nil(t, decoded[1])
}
