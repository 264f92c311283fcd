package peerlink

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Channel kinds. Data and media ride separate peer connections so one
// can fail without tearing SRTP or SCTP state from under the other.
const (
	kindData  = "data"
	kindMedia = "media"
)

// signalMessage is the negotiation metadata relayed between peers.
// The relay never looks inside it.
type signalMessage struct {
	Kind      string                   `json:"kind"` // data | media
	Type      string                   `json:"type"` // offer | answer | candidate
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

const (
	signalOffer     = "offer"
	signalAnswer    = "answer"
	signalCandidate = "candidate"
)

func encodeSignal(m signalMessage) ([]byte, error) {
	return json.Marshal(m)
}

func decodeSignal(b []byte) (signalMessage, error) {
	var m signalMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// politeYield decides which side abandons its own offer when both
// initiate the same channel kind simultaneously. Exactly one side
// yields; the ordering is arbitrary but must be agreed by both, so it
// compares peer ids.
func politeYield(selfID, remoteID string) bool {
	return selfID < remoteID
}
