package grpc

import (
	"google.golang.org/grpc"

	"github.com/baudgraph/graphd/util/json"
)

// jsonCodec marshals grpc messages with json-iterator instead of
// protobuf, so the meta and storage daemons' plain Go request/response
// structs go on the wire without a .proto/protoc step.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) String() string { return "json" }

// ServerCodecOption and DialCodecOption install the json codec on a
// grpc server or client connection respectively. Every graphd grpc
// endpoint uses this codec; mixing codecs on one connection is not
// supported.
func ServerCodecOption() grpc.ServerOption { return grpc.CustomCodec(jsonCodec{}) }

func DialCodecOption() grpc.DialOption { return grpc.WithCodec(jsonCodec{}) }
