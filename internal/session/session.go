// Package session implements the client-side meeting session: the
// canonical peer registry, the per-peer connection lifecycle on top of
// the peer link, signaling reconnection and chat fan-out.
package session

import (
	"errors"
	"time"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/capture"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/peerlink"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/protocol"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/sigclient"
)

// ErrClosed is returned when the session has been torn down.
var ErrClosed = errors.New("session: controller closed")

// SignalingSession is one live signaling connection. Incoming closes
// when the connection is lost, however it is lost.
type SignalingSession interface {
	Send(env *protocol.Envelope) error
	Incoming() <-chan *protocol.Envelope
	Close()
}

// Dialer opens a fresh signaling connection.
type Dialer func(serverURL string) (SignalingSession, error)

func defaultDialer(serverURL string) (SignalingSession, error) {
	c := sigclient.NewClient(serverURL)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Config for a Controller. RoomID, UserID, UserName, Device and
// Adapter are required; the rest default sensibly.
type Config struct {
	RoomID   string
	UserID   string
	UserName string

	ServerURL string
	Device    capture.Device
	Adapter   peerlink.Adapter

	// Dial overrides how signaling connections are opened.
	Dial Dialer

	// ReconnectDelay overrides the reconnect jitter.
	ReconnectDelay func() time.Duration
}

// peerRecord is the registry entry for one remote participant. The
// registry is the single source of truth; everything shown outside is
// a derived view.
type peerRecord struct {
	id     string
	name   string
	data   peerlink.DataChannel
	media  peerlink.MediaChannel
	stream *peerlink.RemoteStream
}

// Peer is the externally visible view of one peer.
type Peer struct {
	ID       string
	Name     string
	Stream   *peerlink.RemoteStream
	DataOpen bool
}

// Message is one chat transcript entry. Immutable once created.
type Message struct {
	Sender     string
	SenderName string
	Content    string
	Timestamp  time.Time
}

// Snapshot is a consistent view of the session for the presentation
// layer, taken atomically from the registry.
type Snapshot struct {
	Peers    []Peer
	Messages []Message

	SignalingConnected bool
	AdapterReady       bool
	AudioEnabled       bool
	VideoEnabled       bool

	LastError error
}

// Stats are session counters that survive teardown.
type Stats struct {
	PeersSeen        int
	MessagesSent     int
	MessagesReceived int
	StartedAt        time.Time
}

func placeholderName(peerID string) string {
	tail := peerID
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return "Peer " + tail
}
