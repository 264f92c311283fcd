package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/protocol"
)

func newTestClient() *Client {
	return &Client{Send: make(chan *protocol.Envelope, 8)}
}

func join(h *Hub, c *Client, roomID, peerID string) {
	h.handleJoin(c, protocol.JoinRoomPayload{RoomID: roomID, PeerID: peerID})
}

func recvEnvelope(t *testing.T, c *Client) *protocol.Envelope {
	t.Helper()
	select {
	case env := <-c.Send:
		return env
	default:
		t.Fatal("expected an envelope, got none")
		return nil
	}
}

func requireNoEnvelope(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.Send:
		t.Fatalf("expected no envelope, got %s", env.Type)
	default:
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func TestJoinAndSnapshot(t *testing.T) {
	h := NewHub()
	alice := newTestClient()
	bob := newTestClient()

	join(h, alice, "AB12C9", "AB12C9-alice")

	env := recvEnvelope(t, alice)
	require.Equal(t, protocol.TypeRoomPeers, env.Type)
	var snap protocol.RoomPeersPayload
	require.NoError(t, env.DecodePayload(&snap))
	require.Empty(t, snap.Peers)

	join(h, bob, "AB12C9", "AB12C9-bob")

	env = recvEnvelope(t, alice)
	require.Equal(t, protocol.TypePeerJoined, env.Type)
	var joined protocol.PeerJoinedPayload
	require.NoError(t, env.DecodePayload(&joined))
	require.Equal(t, "AB12C9-bob", joined.PeerID)
	requireNoEnvelope(t, alice)

	env = recvEnvelope(t, bob)
	require.Equal(t, protocol.TypeRoomPeers, env.Type)
	require.NoError(t, env.DecodePayload(&snap))
	require.ElementsMatch(t, []string{"AB12C9-alice"}, snap.Peers)

	require.Len(t, h.rooms, 1)
	require.Len(t, h.rooms["AB12C9"].Members, 2)
}

func TestDuplicateJoinIsIdempotent(t *testing.T) {
	h := NewHub()
	alice := newTestClient()
	bob := newTestClient()

	join(h, alice, "AB12C9", "AB12C9-alice")
	join(h, bob, "AB12C9", "AB12C9-bob")
	drain(alice)
	drain(bob)

	join(h, bob, "AB12C9", "AB12C9-bob")

	require.Len(t, h.rooms["AB12C9"].Members, 2)

	// No re-broadcast, but the snapshot is always re-sent.
	requireNoEnvelope(t, alice)
	env := recvEnvelope(t, bob)
	require.Equal(t, protocol.TypeRoomPeers, env.Type)
}

func TestSwitchRoomLeavesPrevious(t *testing.T) {
	h := NewHub()
	alice := newTestClient()
	bob := newTestClient()

	join(h, alice, "ROOM1", "ROOM1-alice")
	join(h, bob, "ROOM1", "ROOM1-bob")
	drain(alice)
	drain(bob)

	join(h, bob, "ROOM2", "ROOM2-bob")

	env := recvEnvelope(t, alice)
	require.Equal(t, protocol.TypePeerLeft, env.Type)
	var left protocol.PeerLeftPayload
	require.NoError(t, env.DecodePayload(&left))
	require.Equal(t, "ROOM1-bob", left.PeerID)

	require.Len(t, h.rooms["ROOM1"].Members, 1)
	require.Len(t, h.rooms["ROOM2"].Members, 1)
}

func TestRoomExistsOnlyWhileOccupied(t *testing.T) {
	h := NewHub()
	alice := newTestClient()
	bob := newTestClient()

	// A client with no membership is a no-op.
	h.leave(alice)
	require.Empty(t, h.rooms)

	join(h, alice, "AB12C9", "AB12C9-alice")
	join(h, bob, "AB12C9", "AB12C9-bob")
	drain(alice)
	drain(bob)

	h.leave(alice)
	require.Len(t, h.rooms["AB12C9"].Members, 1)

	env := recvEnvelope(t, bob)
	require.Equal(t, protocol.TypePeerLeft, env.Type)
	var left protocol.PeerLeftPayload
	require.NoError(t, env.DecodePayload(&left))
	require.Equal(t, "AB12C9-alice", left.PeerID)

	h.leave(bob)
	require.Empty(t, h.rooms)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	h := NewHub()
	c := newTestClient()

	// Missing peerId.
	h.dispatch(c, &protocol.Envelope{Type: protocol.TypeJoinRoom, Payload: json.RawMessage(`{"roomId":"AB12C9"}`)})
	require.Empty(t, h.rooms)

	// Unparseable payload.
	h.dispatch(c, &protocol.Envelope{Type: protocol.TypeJoinRoom, Payload: json.RawMessage(`{`)})
	require.Empty(t, h.rooms)

	// Unknown type.
	h.dispatch(c, &protocol.Envelope{Type: "mystery"})
	requireNoEnvelope(t, c)
}

func TestSignalRelay(t *testing.T) {
	h := NewHub()
	alice := newTestClient()
	bob := newTestClient()

	join(h, alice, "AB12C9", "AB12C9-alice")
	join(h, bob, "AB12C9", "AB12C9-bob")
	drain(alice)
	drain(bob)

	data := json.RawMessage(`{"kind":"data","type":"offer","sdp":"v=0"}`)
	h.handleSignal(alice, protocol.SignalPayload{TargetID: "AB12C9-bob", Data: data})

	env := recvEnvelope(t, bob)
	require.Equal(t, protocol.TypeSignal, env.Type)
	var sig protocol.SignalPayload
	require.NoError(t, env.DecodePayload(&sig))
	require.Equal(t, "AB12C9-alice", sig.SenderID)
	require.JSONEq(t, string(data), string(sig.Data))
	requireNoEnvelope(t, alice)

	t.Run("unknown target", func(t *testing.T) {
		h.handleSignal(alice, protocol.SignalPayload{TargetID: "AB12C9-nobody", Data: data})
		env := recvEnvelope(t, alice)
		require.Equal(t, protocol.TypeError, env.Type)
	})

	t.Run("not in a room", func(t *testing.T) {
		stranger := newTestClient()
		h.handleSignal(stranger, protocol.SignalPayload{TargetID: "AB12C9-bob", Data: data})
		env := recvEnvelope(t, stranger)
		require.Equal(t, protocol.TypeError, env.Type)
	})
}

func TestSlowClientIsSkipped(t *testing.T) {
	h := NewHub()
	slow := &Client{Send: make(chan *protocol.Envelope, 1)}
	fast := newTestClient()

	join(h, slow, "AB12C9", "AB12C9-slow")
	// Leave the snapshot in the buffer so it is now full.

	// The broadcast to the wedged client is dropped; the join itself
	// must still complete.
	join(h, fast, "AB12C9", "AB12C9-fast")

	require.Len(t, h.rooms["AB12C9"].Members, 2)
	env := recvEnvelope(t, fast)
	require.Equal(t, protocol.TypeRoomPeers, env.Type)
}
