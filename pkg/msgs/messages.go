// Package msgs defines the protobuf messages exchanged with a telemetry
// collector when an uplink uses protobuf encoding.
package msgs

import (
	"github.com/golang/protobuf/proto"
)

// Envelope carries one telemetry frame.
type Envelope struct {
	NodeID  string `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	Seq     uint32 `protobuf:"varint,2,opt,name=seq,proto3" json:"seq,omitempty"`
	Payload []byte `protobuf:"bytes,3,opt,name=payload,proto3" json:"payload,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Envelope) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Envelope) Reset() { *m = Envelope{} }

// String implements proto.Message.
func (m *Envelope) String() string { return proto.CompactTextString(m) }

// Status is the retained presence of a node.
type Status struct {
	NodeID string `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	Online bool   `protobuf:"varint,2,opt,name=online,proto3" json:"online,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// EncodeEnvelope serializes an Envelope.
func EncodeEnvelope(nodeID string, seq uint32, payload []byte) ([]byte, error) {
	return proto.Marshal(&Envelope{NodeID: nodeID, Seq: seq, Payload: payload})
}

// DecodeEnvelope parses an Envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := proto.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// DecodeStatus parses a Status.
func DecodeStatus(data []byte) (*Status, error) {
	var st Status
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
