package mqtt

import (
	"fmt"
	"sync/atomic"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/telenode/pkg/msgs"
)

// Codec maps frames to MQTT payloads.
type Codec interface {
	Encode(frame []byte) ([]byte, error)
	Decode(payload []byte) ([]byte, error)
	Status(online bool) []byte
}

// CodecByName returns the codec for an encoding query value.
func CodecByName(name, nodeID string) (Codec, error) {
	switch name {
	case "", "text":
		return TextCodec{}, nil
	case "proto":
		return &ProtoCodec{NodeID: nodeID}, nil
	default:
		return nil, fmt.Errorf("unknown mqtt encoding %q", name)
	}
}

// TextCodec sends frames unchanged.
type TextCodec struct{}

// Encode implements Codec.
func (TextCodec) Encode(frame []byte) ([]byte, error) { return frame, nil }

// Decode implements Codec.
func (TextCodec) Decode(payload []byte) ([]byte, error) { return payload, nil }

// Status implements Codec.
func (TextCodec) Status(online bool) []byte {
	if online {
		return []byte("online")
	}
	return []byte("offline")
}

// ProtoCodec wraps frames in msgs.Envelope with a sequence number.
type ProtoCodec struct {
	NodeID string

	seq uint32
}

// Encode implements Codec.
func (c *ProtoCodec) Encode(frame []byte) ([]byte, error) {
	return msgs.EncodeEnvelope(c.NodeID, atomic.AddUint32(&c.seq, 1), frame)
}

// Decode implements Codec.
func (c *ProtoCodec) Decode(payload []byte) ([]byte, error) {
	env, err := msgs.DecodeEnvelope(payload)
	if err != nil {
		return nil, err
	}
	return env.Payload, nil
}

// Status implements Codec.
func (c *ProtoCodec) Status(online bool) []byte {
	data, err := proto.Marshal(&msgs.Status{NodeID: c.NodeID, Online: online})
	if err != nil {
		panic(err)
	}
	return data
}
