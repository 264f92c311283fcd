package sigclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/protocol"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectSendReceiveClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan *protocol.Envelope, 1)
	closeCode := make(chan int, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		received <- &env

		reply, _ := protocol.NewEnvelope(protocol.TypeRoomPeers, protocol.RoomPeersPayload{
			Peers: []string{"AB12C9-user_bob"},
		})
		conn.WriteJSON(reply)

		// Drain until the client's close frame arrives.
		_, _, err = conn.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			closeCode <- ce.Code
		}
	}))
	defer srv.Close()

	c := NewClient(wsURL(srv))
	require.NoError(t, c.Connect())

	env, err := protocol.NewEnvelope(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID: "AB12C9", PeerID: "AB12C9-user_alice",
	})
	require.NoError(t, err)
	require.NoError(t, c.Send(env))

	select {
	case got := <-received:
		require.Equal(t, protocol.TypeJoinRoom, got.Type)
		var join protocol.JoinRoomPayload
		require.NoError(t, got.DecodePayload(&join))
		require.Equal(t, "AB12C9", join.RoomID)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the join envelope")
	}

	select {
	case in, ok := <-c.Incoming():
		require.True(t, ok)
		require.Equal(t, protocol.TypeRoomPeers, in.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope received from server")
	}

	c.Close()

	select {
	case code := <-closeCode:
		require.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw a close frame")
	}

	// Incoming closes once the socket is down.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Incoming():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("incoming channel never closed")
		}
	}
}

func TestIncomingClosesOnServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Kill the socket without a close handshake.
		conn.Close()
	}))
	defer srv.Close()

	c := NewClient(wsURL(srv))
	require.NoError(t, c.Connect())
	defer c.Close()

	select {
	case _, ok := <-c.Incoming():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("incoming channel never closed after server drop")
	}
}

func TestSendAfterClose(t *testing.T) {
	c := NewClient("ws://example.invalid/ws")
	c.Close()
	c.Close() // idempotent

	env, err := protocol.NewEnvelope(protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: "R", PeerID: "R-u"})
	require.NoError(t, err)
	require.Error(t, c.Send(env))
}

func TestConnectFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws")
	require.Error(t, c.Connect())
}
