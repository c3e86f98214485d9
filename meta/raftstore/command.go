package raftstore

import (
	"github.com/baudgraph/graphd/proto/storagepb"
	"github.com/baudgraph/graphd/util/json"
)

type commandType int

const (
	cmdPut commandType = iota
	cmdRemove
	cmdRemoveRange
)

// command is the payload proposed to raft for one mutation against the
// meta partition's single bolt bucket. Puts, keys, and the remove-range
// bounds are mutually exclusive depending on Type.
type command struct {
	Type       commandType
	Puts       []storagepb.KVPair `json:"Puts,omitempty"`
	Keys       [][]byte           `json:"Keys,omitempty"`
	RangeStart []byte             `json:"RangeStart,omitempty"`
	RangeEnd   []byte             `json:"RangeEnd,omitempty"`
}

func encodeCommand(c *command) ([]byte, error) {
	return json.Marshal(c)
}

func decodeCommand(data []byte) (*command, error) {
	c := &command{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
