package protocol

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// DataMessage represents all messages exchanged over an established
// peer data channel. Encoded with msgpack, not JSON: the channel is
// binary and frames stay compact.
type DataMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Data channel message types.
const (
	DataTypeHandshake = "handshake"
	DataTypeChat      = "chat-message"
)

// HandshakePayload is sent exactly once per data channel, immediately
// after it opens, so the remote side learns our display name.
type HandshakePayload struct {
	UserID   string `msgpack:"userId"`
	UserName string `msgpack:"userName"`
}

// ChatPayload carries one chat message.
type ChatPayload struct {
	UserID    string    `msgpack:"userId"`
	UserName  string    `msgpack:"userName"`
	Content   string    `msgpack:"content"`
	Timestamp time.Time `msgpack:"timestamp"`
}

// NewDataMessage creates a DataMessage with the given type and payload.
func NewDataMessage(t string, payload any) (DataMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return DataMessage{}, err
	}
	return DataMessage{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m DataMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// EncodeDataMessage marshals a full data channel frame.
func EncodeDataMessage(m DataMessage) ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodeDataMessage unmarshals a full data channel frame.
func DecodeDataMessage(b []byte) (DataMessage, error) {
	var m DataMessage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return DataMessage{}, err
	}
	return m, nil
}
