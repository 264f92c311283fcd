// Package peerlink provides the peer link: the transport capability
// carrying a data channel and a media channel directly between two
// participants once the relay has exchanged their connection metadata.
// The session controller only ever sees this package's interfaces.
package peerlink

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// SendSignalFunc delivers opaque negotiation metadata to one peer via
// the signaling relay.
type SendSignalFunc func(targetID string, data []byte) error

// Adapter is the peer link capability. One Adapter serves a whole
// session; channels toward individual peers are created on demand.
//
// Both sides of a pair may initiate toward each other at once; the
// adapter resolves the glare internally and the controller dedupes on
// peer id, so callers never need to coordinate who dials first.
type Adapter interface {
	// BindSender wires the outbound metadata path. Must be called
	// before Start.
	BindSender(send SendSignalFunc)

	// Start readies the adapter for the session. The local stream is
	// what gets published on every media channel.
	Start(selfID string, local LocalStream) error

	// Connect initiates an outbound data channel toward a peer.
	Connect(peerID string) (DataChannel, error)

	// Call initiates an outbound media channel toward a peer,
	// publishing the local stream given at Start.
	Call(peerID string) (MediaChannel, error)

	// HandleSignal feeds one relayed metadata blob from a peer.
	HandleSignal(fromID string, data []byte)

	// Events delivers channel lifecycle events. Consume promptly.
	Events() <-chan Event

	// Done is closed when the adapter shuts down.
	Done() <-chan struct{}

	// Close tears down every channel. Idempotent.
	Close() error
}

// LocalStream is what the adapter needs from the capture layer.
type LocalStream interface {
	Tracks() []webrtc.TrackLocal
}

// DataChannel is one peer's signaling/chat sub-channel.
type DataChannel interface {
	Send(b []byte) error
	IsOpen() bool
	Close() error
}

// MediaChannel is one peer's audio/video sub-channel.
type MediaChannel interface {
	Close() error
}

// EventKind discriminates adapter events.
type EventKind int

const (
	// EventDataOpen fires when a data channel (inbound or outbound)
	// with a peer becomes usable.
	EventDataOpen EventKind = iota

	// EventDataMessage carries one inbound data channel frame.
	EventDataMessage

	// EventDataClosed fires when a peer's data channel closes.
	EventDataClosed

	// EventDataError fires when a peer's data channel fails.
	EventDataError

	// EventMediaOpen fires when an inbound media call was answered;
	// the handle lets the owner close it later.
	EventMediaOpen

	// EventMediaStream fires when a peer's remote stream arrives.
	EventMediaStream

	// EventMediaClosed fires when a peer's media channel closes.
	EventMediaClosed

	// EventMediaError fires when a peer's media channel fails.
	EventMediaError
)

// Event is one adapter notification. PeerID is always set; the other
// fields depend on Kind.
type Event struct {
	Kind   EventKind
	PeerID string
	Data   []byte
	Stream *RemoteStream
	Chan   DataChannel
	Media  MediaChannel
	Err    error
}

// RemoteStream is the remote media stream handle for one peer. Tracks
// arrive incrementally; the presentation layer reads them dynamically.
type RemoteStream struct {
	PeerID string
	ID     string

	mu     sync.Mutex
	tracks []*webrtc.TrackRemote
}

// Tracks returns the remote tracks received so far.
func (s *RemoteStream) Tracks() []*webrtc.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*webrtc.TrackRemote, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *RemoteStream) addTrack(t *webrtc.TrackRemote) (first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
	return len(s.tracks) == 1
}
