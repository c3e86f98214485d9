// Package metapb holds the wire types shared by the meta and storage
// daemons: cluster identity, space/partition topology, and the schema and
// index records the meta service keeps in partition (0,0).
package metapb

import (
	"fmt"
	"net"
	"strconv"
)

// SpaceID identifies a logical graph database.
type SpaceID = uint32

// PartID identifies a partition within a space.
type PartID = uint32

// SchemaID identifies a tag or edge type.
type SchemaID = uint32

// ReservedClusterIDKey is the meta-partition key the cluster id is
// persisted under. It is written exactly once, by the first leader to
// observe its absence.
const ReservedClusterIDKey = "__meta_cluster_id_key__"

// MetaSpaceID and MetaPartID name the well-known (space=0, part=0)
// partition that holds all meta state.
const (
	MetaSpaceID SpaceID = 0
	MetaPartID  PartID  = 0
)

// HostAddr is a daemon's network identity. Equality is structural: two
// HostAddrs are the same host iff both fields match.
type HostAddr struct {
	Host string
	Port uint16
}

// IsZero reports whether this is the unset host, returned by PartLeader
// before a partition has completed its first election.
func (h HostAddr) IsZero() bool {
	return h.Host == "" && h.Port == 0
}

func (h HostAddr) String() string {
	if h.IsZero() {
		return ""
	}
	return h.Host + ":" + itoa(int(h.Port))
}

// ParseHostAddr parses a "host:port" string as written in a daemon's
// peer-list configuration.
func ParseHostAddr(s string) (HostAddr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return HostAddr{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return HostAddr{}, fmt.Errorf("metapb: invalid port in %q: %w", s, err)
	}
	return HostAddr{Host: host, Port: uint16(port)}, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [6]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Partition describes one partition's replica set.
type Partition struct {
	Space SpaceID
	Part  PartID
	Peers []HostAddr
}

// ColumnType enumerates the property types a ColumnDef may carry.
type ColumnType int32

const (
	ColumnTypeUnknown ColumnType = iota
	ColumnTypeBool
	ColumnTypeInt
	ColumnTypeFloat
	ColumnTypeString
	ColumnTypeDate
	ColumnTypeDatetime
	ColumnTypeList
)

// ColumnDef describes one property of a tag or edge schema.
type ColumnDef struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Default  []byte // encoded default value, nil if none
}

// SchemaVersion is an immutable, versioned set of columns. New versions
// append columns; they never mutate or remove existing ones.
type SchemaVersion struct {
	Version uint32
	Columns []ColumnDef
}

// Schema is a tag or edge type's full version history.
type Schema struct {
	ID       SchemaID
	Name     string
	IsEdge   bool
	Versions []SchemaVersion
}

// Latest returns the most recently appended version.
func (s *Schema) Latest() SchemaVersion {
	return s.Versions[len(s.Versions)-1]
}

// IndexItem is a secondary index: an ordered column prefix of one schema.
type IndexItem struct {
	IndexID  uint32
	SchemaID SchemaID
	IsEdge   bool
	Fields   []ColumnDef

	// VColNum is the count of variable-length (string) columns among
	// Fields; key-decoders need this to locate field boundaries.
	VColNum int
	// HasNullableCol is true when any field in Fields is nullable, in
	// which case the encoded index key carries a trailing null-bitmap.
	HasNullableCol bool
}

// NewIndexItem derives VColNum/HasNullableCol from Fields.
func NewIndexItem(indexID uint32, schemaID SchemaID, isEdge bool, fields []ColumnDef) *IndexItem {
	item := &IndexItem{IndexID: indexID, SchemaID: schemaID, IsEdge: isEdge, Fields: fields}
	for _, f := range fields {
		if f.Type == ColumnTypeString {
			item.VColNum++
		}
		if f.Nullable {
			item.HasNullableCol = true
		}
	}
	return item
}

// User is a meta-managed account. Only the bootstrap root user is
// created implicitly; everything else is ordinary CRUD.
type User struct {
	Name         string
	PasswordHash string
	IsRoot       bool
}

// RootUserPrefix is the meta key prefix root-user bootstrap checks on
// every leader's first tick after the cluster id is set.
const RootUserPrefix = "__meta_user_root__"

// DefaultRootUser is installed by the leader the first time it observes
// RootUserPrefix absent.
var DefaultRootUser = User{Name: "root", IsRoot: true}
