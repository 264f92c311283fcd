package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireFormat(t *testing.T) {
	env, err := NewEnvelope(TypeJoinRoom, JoinRoomPayload{RoomID: "AB12C9", PeerID: "AB12C9-user_x"})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"type":"join-room","payload":{"roomId":"AB12C9","peerId":"AB12C9-user_x"}}`,
		string(raw))

	var back Envelope
	require.NoError(t, json.Unmarshal(raw, &back))
	var join JoinRoomPayload
	require.NoError(t, back.DecodePayload(&join))
	require.Equal(t, "AB12C9", join.RoomID)
}

func TestSignalPayloadOpaqueData(t *testing.T) {
	data := json.RawMessage(`{"kind":"media","type":"offer","sdp":"v=0"}`)
	env, err := NewEnvelope(TypeSignal, SignalPayload{TargetID: "AB12C9-user_y", Data: data})
	require.NoError(t, err)

	var sig SignalPayload
	require.NoError(t, env.DecodePayload(&sig))
	require.Equal(t, "AB12C9-user_y", sig.TargetID)
	require.Empty(t, sig.SenderID)
	require.JSONEq(t, string(data), string(sig.Data))
}

func TestDataMessageRoundTrip(t *testing.T) {
	sent := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	dm, err := NewDataMessage(DataTypeChat, ChatPayload{
		UserID: "user_x", UserName: "Xena", Content: "hello", Timestamp: sent,
	})
	require.NoError(t, err)

	frame, err := EncodeDataMessage(dm)
	require.NoError(t, err)

	back, err := DecodeDataMessage(frame)
	require.NoError(t, err)
	require.Equal(t, DataTypeChat, back.Type)

	var chat ChatPayload
	require.NoError(t, back.DecodePayload(&chat))
	require.Equal(t, "hello", chat.Content)
	require.Equal(t, "Xena", chat.UserName)
	require.True(t, chat.Timestamp.Equal(sent))
}

func TestDecodeDataMessageGarbage(t *testing.T) {
	_, err := DecodeDataMessage([]byte{0xc1})
	require.Error(t, err)
}
