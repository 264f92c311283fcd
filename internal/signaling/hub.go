package signaling

import (
	"log/slog"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/protocol"
)

// inboundFrame pairs a parsed envelope with the client that sent it.
type inboundFrame struct {
	client *Client
	env    *protocol.Envelope
}

// Hub is the room registry. It maps room ids to member sets and fans
// out membership events. All state lives behind a single goroutine
// (Run); the pumps talk to it only through channels, so no mutation
// ever happens concurrently.
//
// The hub holds no durable state. A crash loses all membership, which
// is fine: clients re-derive it by re-sending join-room on reconnect.
type Hub struct {
	rooms map[string]*Room

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	inbound chan *inboundFrame
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		inbound:    make(chan *inboundFrame),
	}
}

// Run starts the hub's main processing loop.
// This is the single goroutine that safely manages all state.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// Not in any room yet; membership starts with the
			// first join-room frame.
			slog.Debug("client registered", "addr", client.addr)

		case client := <-h.Unregister:
			slog.Debug("client unregistered", "addr", client.addr)
			h.leave(client)
			close(client.Send)

		case frame := <-h.inbound:
			h.dispatch(frame.client, frame.env)
		}
	}
}

// dispatch routes one inbound envelope. Unknown types and malformed
// payloads are logged and dropped; the connection is never closed for
// that reason alone.
func (h *Hub) dispatch(c *Client, env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeJoinRoom:
		var p protocol.JoinRoomPayload
		if err := env.DecodePayload(&p); err != nil || p.RoomID == "" || p.PeerID == "" {
			slog.Warn("dropping invalid join-room", "addr", c.addr, "err", err)
			return
		}
		h.handleJoin(c, p)

	case protocol.TypeSignal:
		var p protocol.SignalPayload
		if err := env.DecodePayload(&p); err != nil || p.TargetID == "" {
			slog.Warn("dropping invalid signal", "addr", c.addr, "err", err)
			return
		}
		h.handleSignal(c, p)

	default:
		slog.Warn("unknown message type", "type", env.Type, "addr", c.addr)
	}
}

// handleJoin joins (or switches) c into the requested room.
//
// Joining a new room implicitly leaves any prior one. A duplicate join
// to the current room changes nothing, but the room-peers snapshot is
// always re-sent.
func (h *Hub) handleJoin(c *Client, p protocol.JoinRoomPayload) {
	if c.roomID != "" && c.roomID != p.RoomID {
		h.leave(c)
	}

	c.peerID = p.PeerID

	room, ok := h.rooms[p.RoomID]
	if !ok {
		room = newRoom(p.RoomID)
		h.rooms[p.RoomID] = room
	}

	if !room.Members[c] {
		room.Members[c] = true
		c.roomID = p.RoomID
		slog.Info("peer joined room", "room", p.RoomID, "peer", p.PeerID, "size", len(room.Members))
		h.broadcast(room, c, mustEnvelope(protocol.TypePeerJoined, protocol.PeerJoinedPayload{PeerID: p.PeerID}))
	}

	// Snapshot of everyone else, joiner excluded.
	h.sendTo(c, mustEnvelope(protocol.TypeRoomPeers, protocol.RoomPeersPayload{Peers: room.peerIDs(c)}))
}

// leave removes c from its current room, deleting the room when its
// member set empties and otherwise notifying the remaining members.
// A client with no room membership is a no-op.
func (h *Hub) leave(c *Client) {
	if c.roomID == "" {
		return
	}

	room, ok := h.rooms[c.roomID]
	leftPeer := c.peerID
	c.roomID = ""
	if !ok {
		return
	}

	delete(room.Members, c)
	if len(room.Members) == 0 {
		delete(h.rooms, room.ID)
		slog.Info("room deleted", "room", room.ID)
		return
	}

	slog.Info("peer left room", "room", room.ID, "peer", leftPeer, "size", len(room.Members))
	h.broadcast(room, nil, mustEnvelope(protocol.TypePeerLeft, protocol.PeerLeftPayload{PeerID: leftPeer}))
}

// handleSignal forwards opaque connection metadata to one member of
// the sender's room. The data is never inspected.
func (h *Hub) handleSignal(c *Client, p protocol.SignalPayload) {
	if c.roomID == "" {
		h.sendTo(c, mustEnvelope(protocol.TypeError, protocol.ErrorPayload{Message: "you must join a room first"}))
		return
	}

	room, ok := h.rooms[c.roomID]
	if !ok {
		h.sendTo(c, mustEnvelope(protocol.TypeError, protocol.ErrorPayload{Message: "room not found"}))
		return
	}

	var target *Client
	for m := range room.Members {
		if m.peerID == p.TargetID {
			target = m
			break
		}
	}
	if target == nil {
		h.sendTo(c, mustEnvelope(protocol.TypeError, protocol.ErrorPayload{Message: "unknown peer " + p.TargetID}))
		return
	}

	out := protocol.SignalPayload{SenderID: c.peerID, Data: p.Data}
	h.sendTo(target, mustEnvelope(protocol.TypeSignal, out))
}

// broadcast sends env to every member of room except exclude.
func (h *Hub) broadcast(room *Room, exclude *Client, env *protocol.Envelope) {
	for m := range room.Members {
		if m == exclude {
			continue
		}
		h.sendTo(m, env)
	}
}

// sendTo queues env for one client. A client whose send buffer is full
// is silently skipped: no retry, no error surfaced to the sender.
func (h *Hub) sendTo(c *Client, env *protocol.Envelope) {
	select {
	case c.Send <- env:
	default:
		slog.Warn("dropping envelope for slow client", "addr", c.addr, "type", env.Type)
	}
}

func mustEnvelope(msgType string, payload any) *protocol.Envelope {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		// Payload types here are our own structs; marshal cannot fail.
		panic(err)
	}
	return env
}
