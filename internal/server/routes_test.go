package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/protocol"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/sigclient"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/signaling"
)

// End-to-end over a real websocket: two clients join the same room and
// see each other through the hub.
func TestJoinRoundTrip(t *testing.T) {
	hub := signaling.NewHub()
	go hub.Run()

	srv := httptest.NewServer(ServeWs(hub))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	alice := sigclient.NewClient(url)
	require.NoError(t, alice.Connect())
	defer alice.Close()

	sendJoin(t, alice, "AB12C9", "AB12C9-user_alice")
	env := recvTimeout(t, alice)
	require.Equal(t, protocol.TypeRoomPeers, env.Type)
	var snap protocol.RoomPeersPayload
	require.NoError(t, env.DecodePayload(&snap))
	require.Empty(t, snap.Peers)

	bob := sigclient.NewClient(url)
	require.NoError(t, bob.Connect())
	defer bob.Close()

	sendJoin(t, bob, "AB12C9", "AB12C9-user_bob")
	env = recvTimeout(t, bob)
	require.Equal(t, protocol.TypeRoomPeers, env.Type)
	require.NoError(t, env.DecodePayload(&snap))
	require.Equal(t, []string{"AB12C9-user_alice"}, snap.Peers)

	env = recvTimeout(t, alice)
	require.Equal(t, protocol.TypePeerJoined, env.Type)
	var joined protocol.PeerJoinedPayload
	require.NoError(t, env.DecodePayload(&joined))
	require.Equal(t, "AB12C9-user_bob", joined.PeerID)

	// A disconnect propagates as peer-left.
	bob.Close()
	env = recvTimeout(t, alice)
	require.Equal(t, protocol.TypePeerLeft, env.Type)
	var left protocol.PeerLeftPayload
	require.NoError(t, env.DecodePayload(&left))
	require.Equal(t, "AB12C9-user_bob", left.PeerID)
}

func sendJoin(t *testing.T, c *sigclient.Client, roomID, peerID string) {
	t.Helper()
	env, err := protocol.NewEnvelope(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID: roomID, PeerID: peerID,
	})
	require.NoError(t, err)
	require.NoError(t, c.Send(env))
}

func recvTimeout(t *testing.T, c *sigclient.Client) *protocol.Envelope {
	t.Helper()
	select {
	case env, ok := <-c.Incoming():
		require.True(t, ok, "connection closed while waiting for an envelope")
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an envelope")
		return nil
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
}
