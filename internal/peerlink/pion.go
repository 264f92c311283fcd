package peerlink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

var (
	errClosed  = errors.New("peerlink: adapter closed")
	errNotOpen = errors.New("peerlink: data channel not open")
)

// ICEOptions configures NAT traversal for every peer connection.
type ICEOptions struct {
	STUNServers []string
	TURNServers []string
	TURNUser    string
	TURNPass    string
}

type linkKey struct {
	peer string
	kind string
}

// link is one peer connection, either the data or the media leg
// toward one peer.
type link struct {
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	initiator bool
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	stream    *RemoteStream
}

// PionAdapter implements Adapter on pion/webrtc. Each peer gets two
// independent peer connections (data, media), negotiated over the
// signaling relay via the bound SendSignalFunc.
type PionAdapter struct {
	cfg webrtc.Configuration

	mu     sync.Mutex
	selfID string
	local  LocalStream
	send   SendSignalFunc
	links  map[linkKey]*link
	closed bool

	events chan Event
	done   chan struct{}
}

// NewPion creates an adapter with the given ICE servers.
func NewPion(opts ICEOptions) *PionAdapter {
	var servers []webrtc.ICEServer
	for _, u := range opts.STUNServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	if len(opts.TURNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       opts.TURNServers,
			Username:   opts.TURNUser,
			Credential: opts.TURNPass,
		})
	}

	return &PionAdapter{
		cfg:    webrtc.Configuration{ICEServers: servers},
		links:  make(map[linkKey]*link),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// BindSender implements Adapter.
func (a *PionAdapter) BindSender(send SendSignalFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.send = send
}

// Start implements Adapter.
func (a *PionAdapter) Start(selfID string, local LocalStream) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errClosed
	}
	if a.send == nil {
		return errors.New("peerlink: no signal sender bound")
	}
	a.selfID = selfID
	a.local = local
	return nil
}

// Events implements Adapter.
func (a *PionAdapter) Events() <-chan Event { return a.events }

// Done implements Adapter.
func (a *PionAdapter) Done() <-chan struct{} { return a.done }

// Connect implements Adapter. If negotiation with the peer is already
// underway (an inbound offer won a race), the existing link is reused.
func (a *PionAdapter) Connect(peerID string) (DataChannel, error) {
	key := linkKey{peer: peerID, kind: kindData}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, errClosed
	}
	if _, ok := a.links[key]; ok {
		a.mu.Unlock()
		return &pionDataChannel{a: a, peer: peerID}, nil
	}
	pc, err := webrtc.NewPeerConnection(a.cfg)
	if err != nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	l := &link{pc: pc, initiator: true}
	a.links[key] = l
	a.mu.Unlock()

	dc, err := pc.CreateDataChannel("meetly", nil)
	if err != nil {
		a.closeLink(key)
		return nil, fmt.Errorf("create data channel: %w", err)
	}

	a.mu.Lock()
	l.dc = dc
	a.mu.Unlock()

	a.wireData(key, dc)
	a.wirePC(key, pc)

	if err := a.sendOffer(key, pc); err != nil {
		a.closeLink(key)
		return nil, err
	}
	return &pionDataChannel{a: a, peer: peerID}, nil
}

// Call implements Adapter.
func (a *PionAdapter) Call(peerID string) (MediaChannel, error) {
	key := linkKey{peer: peerID, kind: kindMedia}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, errClosed
	}
	local := a.local
	if _, ok := a.links[key]; ok {
		a.mu.Unlock()
		return &pionMediaChannel{a: a, peer: peerID}, nil
	}
	pc, err := webrtc.NewPeerConnection(a.cfg)
	if err != nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	a.links[key] = &link{pc: pc, initiator: true}
	a.mu.Unlock()

	if err := a.publishLocal(pc, local); err != nil {
		a.closeLink(key)
		return nil, err
	}
	a.wireMedia(key, pc)
	a.wirePC(key, pc)

	if err := a.sendOffer(key, pc); err != nil {
		a.closeLink(key)
		return nil, err
	}
	return &pionMediaChannel{a: a, peer: peerID}, nil
}

// HandleSignal implements Adapter. Malformed metadata is dropped.
func (a *PionAdapter) HandleSignal(fromID string, data []byte) {
	msg, err := decodeSignal(data)
	if err != nil {
		slog.Warn("dropping malformed signal", "peer", fromID, "err", err)
		return
	}
	if msg.Kind != kindData && msg.Kind != kindMedia {
		slog.Warn("dropping signal with unknown kind", "peer", fromID, "kind", msg.Kind)
		return
	}

	key := linkKey{peer: fromID, kind: msg.Kind}
	switch msg.Type {
	case signalOffer:
		a.handleOffer(key, msg)
	case signalAnswer:
		a.handleAnswer(key, msg)
	case signalCandidate:
		a.handleCandidate(key, msg)
	default:
		slog.Warn("dropping signal with unknown type", "peer", fromID, "type", msg.Type)
	}
}

// Close implements Adapter.
func (a *PionAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	links := a.links
	a.links = make(map[linkKey]*link)
	a.mu.Unlock()

	close(a.done)
	for _, l := range links {
		l.pc.Close()
	}
	return nil
}

// handleOffer answers an inbound offer, creating the answering link on
// demand. On glare (both sides offered the same kind) exactly one side
// abandons its own offer and answers instead.
func (a *PionAdapter) handleOffer(key linkKey, msg signalMessage) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	l := a.links[key]
	if l != nil && l.initiator {
		if !politeYield(a.selfID, key.peer) {
			// The remote side yields; our offer stands.
			a.mu.Unlock()
			return
		}
		delete(a.links, key)
		old := l.pc
		l = nil
		a.mu.Unlock()
		old.Close()
		a.mu.Lock()
	}

	if l == nil {
		pc, err := webrtc.NewPeerConnection(a.cfg)
		if err != nil {
			a.mu.Unlock()
			slog.Warn("answering offer failed", "peer", key.peer, "err", err)
			return
		}
		l = &link{pc: pc}
		a.links[key] = l
		local := a.local
		a.mu.Unlock()

		if key.kind == kindMedia {
			// Answer the call with our own stream, so media flows
			// both ways off a single negotiation.
			if err := a.publishLocal(pc, local); err != nil {
				slog.Warn("publishing local stream failed", "peer", key.peer, "err", err)
			}
			a.wireMedia(key, pc)
		} else {
			pc.OnDataChannel(func(dc *webrtc.DataChannel) {
				a.mu.Lock()
				if cur := a.links[key]; cur != nil {
					cur.dc = dc
				}
				a.mu.Unlock()
				a.wireData(key, dc)
			})
		}
		a.wirePC(key, pc)
	} else {
		a.mu.Unlock()
	}

	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		slog.Warn("set remote offer failed", "peer", key.peer, "err", err)
		return
	}
	a.flushCandidates(key)

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		slog.Warn("create answer failed", "peer", key.peer, "err", err)
		return
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		slog.Warn("set local answer failed", "peer", key.peer, "err", err)
		return
	}
	a.sendSignal(key, signalMessage{Kind: key.kind, Type: signalAnswer, SDP: answer.SDP})

	if key.kind == kindMedia {
		a.emit(Event{Kind: EventMediaOpen, PeerID: key.peer, Media: &pionMediaChannel{a: a, peer: key.peer}})
	}
}

func (a *PionAdapter) handleAnswer(key linkKey, msg signalMessage) {
	a.mu.Lock()
	l := a.links[key]
	a.mu.Unlock()
	if l == nil || !l.initiator {
		return
	}

	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		slog.Warn("set remote answer failed", "peer", key.peer, "err", err)
		return
	}
	a.flushCandidates(key)
}

func (a *PionAdapter) handleCandidate(key linkKey, msg signalMessage) {
	if msg.Candidate == nil {
		return
	}

	a.mu.Lock()
	l := a.links[key]
	if l == nil {
		a.mu.Unlock()
		return
	}
	if !l.remoteSet {
		// Candidates may outrun the offer/answer; hold them.
		l.pending = append(l.pending, *msg.Candidate)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	if err := l.pc.AddICECandidate(*msg.Candidate); err != nil {
		slog.Warn("add ice candidate failed", "peer", key.peer, "err", err)
	}
}

func (a *PionAdapter) flushCandidates(key linkKey) {
	a.mu.Lock()
	l := a.links[key]
	if l == nil {
		a.mu.Unlock()
		return
	}
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	a.mu.Unlock()

	for _, c := range pending {
		if err := l.pc.AddICECandidate(c); err != nil {
			slog.Warn("add buffered candidate failed", "peer", key.peer, "err", err)
		}
	}
}

func (a *PionAdapter) publishLocal(pc *webrtc.PeerConnection, local LocalStream) error {
	if local == nil {
		return errors.New("peerlink: adapter not started")
	}
	for _, t := range local.Tracks() {
		if _, err := pc.AddTrack(t); err != nil {
			return fmt.Errorf("add local track: %w", err)
		}
	}
	return nil
}

func (a *PionAdapter) sendOffer(key linkKey, pc *webrtc.PeerConnection) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	return a.sendSignal(key, signalMessage{Kind: key.kind, Type: signalOffer, SDP: offer.SDP})
}

func (a *PionAdapter) sendSignal(key linkKey, msg signalMessage) error {
	b, err := encodeSignal(msg)
	if err != nil {
		return err
	}
	a.mu.Lock()
	send := a.send
	a.mu.Unlock()
	if send == nil {
		return errors.New("peerlink: no signal sender bound")
	}
	return send(key.peer, b)
}

// wireData attaches handlers to one data channel. Events from a
// channel that has been superseded or explicitly closed are dropped,
// so a yielded glare offer never looks like a peer failure.
func (a *PionAdapter) wireData(key linkKey, dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		if !a.currentData(key, dc) {
			return
		}
		a.emit(Event{Kind: EventDataOpen, PeerID: key.peer, Chan: &pionDataChannel{a: a, peer: key.peer}})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !a.currentData(key, dc) {
			return
		}
		a.emit(Event{Kind: EventDataMessage, PeerID: key.peer, Data: msg.Data})
	})
	dc.OnClose(func() {
		if !a.currentData(key, dc) {
			return
		}
		a.emit(Event{Kind: EventDataClosed, PeerID: key.peer})
	})
	dc.OnError(func(err error) {
		if !a.currentData(key, dc) {
			return
		}
		a.emit(Event{Kind: EventDataError, PeerID: key.peer, Err: err})
	})
}

// wireMedia attaches the remote track handler to a media leg.
func (a *PionAdapter) wireMedia(key linkKey, pc *webrtc.PeerConnection) {
	pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		a.mu.Lock()
		l := a.links[key]
		if l == nil || l.pc != pc {
			a.mu.Unlock()
			return
		}
		if l.stream == nil {
			l.stream = &RemoteStream{PeerID: key.peer, ID: tr.StreamID()}
		}
		st := l.stream
		a.mu.Unlock()

		if st.addTrack(tr) {
			a.emit(Event{Kind: EventMediaStream, PeerID: key.peer, Stream: st})
		}
	})
}

// wirePC attaches transport state handlers common to both legs.
func (a *PionAdapter) wirePC(key linkKey, pc *webrtc.PeerConnection) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		if err := a.sendSignal(key, signalMessage{Kind: key.kind, Type: signalCandidate, Candidate: &init}); err != nil {
			slog.Debug("candidate send failed", "peer", key.peer, "err", err)
		}
	})
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		if !a.currentPC(key, pc) {
			return
		}
		switch st {
		case webrtc.PeerConnectionStateFailed:
			if key.kind == kindData {
				a.emit(Event{Kind: EventDataError, PeerID: key.peer, Err: errors.New("data transport failed")})
			} else {
				a.emit(Event{Kind: EventMediaError, PeerID: key.peer, Err: errors.New("media transport failed")})
			}
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			if key.kind == kindMedia {
				a.emit(Event{Kind: EventMediaClosed, PeerID: key.peer})
			}
		}
	})
}

func (a *PionAdapter) currentData(key linkKey, dc *webrtc.DataChannel) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	l := a.links[key]
	return l != nil && l.dc == dc
}

func (a *PionAdapter) currentPC(key linkKey, pc *webrtc.PeerConnection) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	l := a.links[key]
	return l != nil && l.pc == pc
}

func (a *PionAdapter) closeLink(key linkKey) error {
	a.mu.Lock()
	l := a.links[key]
	delete(a.links, key)
	a.mu.Unlock()

	if l != nil {
		return l.pc.Close()
	}
	return nil
}

func (a *PionAdapter) emit(ev Event) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// pionDataChannel resolves the current data leg dynamically, so a
// handle stays valid across glare resolution.
type pionDataChannel struct {
	a    *PionAdapter
	peer string
}

func (d *pionDataChannel) get() *webrtc.DataChannel {
	d.a.mu.Lock()
	defer d.a.mu.Unlock()
	l := d.a.links[linkKey{peer: d.peer, kind: kindData}]
	if l == nil {
		return nil
	}
	return l.dc
}

func (d *pionDataChannel) Send(b []byte) error {
	dc := d.get()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return errNotOpen
	}
	return dc.Send(b)
}

func (d *pionDataChannel) IsOpen() bool {
	dc := d.get()
	return dc != nil && dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (d *pionDataChannel) Close() error {
	return d.a.closeLink(linkKey{peer: d.peer, kind: kindData})
}

type pionMediaChannel struct {
	a    *PionAdapter
	peer string
}

func (m *pionMediaChannel) Close() error {
	return m.a.closeLink(linkKey{peer: m.peer, kind: kindMedia})
}
