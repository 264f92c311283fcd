package peerlink

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestPoliteYieldIsAsymmetric(t *testing.T) {
	a, b := "AB12C9-user_alice", "AB12C9-user_bob"
	require.NotEqual(t, politeYield(a, b), politeYield(b, a))
	// Exactly one side yields per pair; a peer never yields to itself.
	require.False(t, politeYield(a, a))
}

func TestSignalRoundTrip(t *testing.T) {
	sdp := "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"
	b, err := encodeSignal(signalMessage{Kind: kindMedia, Type: signalOffer, SDP: sdp})
	require.NoError(t, err)

	m, err := decodeSignal(b)
	require.NoError(t, err)
	require.Equal(t, kindMedia, m.Kind)
	require.Equal(t, signalOffer, m.Type)
	require.Equal(t, sdp, m.SDP)
	require.Nil(t, m.Candidate)
}

func TestSignalCandidateRoundTrip(t *testing.T) {
	mid := "0"
	b, err := encodeSignal(signalMessage{
		Kind: kindData,
		Type: signalCandidate,
		Candidate: &webrtc.ICECandidateInit{
			Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host",
			SDPMid:    &mid,
		},
	})
	require.NoError(t, err)

	m, err := decodeSignal(b)
	require.NoError(t, err)
	require.Equal(t, signalCandidate, m.Type)
	require.NotNil(t, m.Candidate)
	require.Equal(t, "0", *m.Candidate.SDPMid)
}

func TestDecodeSignalGarbage(t *testing.T) {
	_, err := decodeSignal([]byte(`{`))
	require.Error(t, err)
}
