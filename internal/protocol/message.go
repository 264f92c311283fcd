package protocol

import "encoding/json"

// Envelope is the frame exchanged over the signaling websocket.
// One JSON object per text frame; Payload shape depends on Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Signaling message types.
const (
	TypeJoinRoom   = "join-room"
	TypeRoomPeers  = "room-peers"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeError      = "error"
	TypeSignal     = "signal"
)

// JoinRoomPayload is sent by a client to join or switch rooms.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

// RoomPeersPayload is the membership snapshot unicast to a joiner.
// Peers lists the other current members; ordering is unspecified.
type RoomPeersPayload struct {
	Peers []string `json:"peers"`
}

// PeerJoinedPayload is broadcast to a room when a new member joins.
type PeerJoinedPayload struct {
	PeerID string `json:"peerId"`
}

// PeerLeftPayload is broadcast to a room when a member leaves.
type PeerLeftPayload struct {
	PeerID string `json:"peerId"`
}

// ErrorPayload carries a non-fatal server-side error notice.
type ErrorPayload struct {
	Message string `json:"message"`
}

// SignalPayload relays opaque connection metadata (SDP, ICE) between
// two members of the same room. The server fills SenderID on the way
// out and never inspects Data.
type SignalPayload struct {
	TargetID string          `json:"targetId,omitempty"`
	SenderID string          `json:"senderId,omitempty"`
	Data     json.RawMessage `json:"data"`
}

// NewEnvelope builds an envelope with the payload marshaled in place.
func NewEnvelope(msgType string, payload any) (*Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: msgType, Payload: b}, nil
}

// DecodePayload unmarshals the envelope payload into v.
func (e *Envelope) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
