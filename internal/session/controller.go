package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/capture"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/ids"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/peerlink"
	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/protocol"
)

// Reconnect jitter: a fixed floor plus a random additive span, so a
// server restart does not get a thundering herd of simultaneous
// redials.
const (
	reconnectFloor = 3000 * time.Millisecond
	reconnectSpan  = 2000 * time.Millisecond
)

func defaultReconnectDelay() time.Duration {
	return reconnectFloor + time.Duration(rand.Int64N(int64(reconnectSpan)))
}

// Controller owns one meeting session end to end: local capture, the
// signaling connection, the peer registry and every per-peer channel.
//
// All registry mutation happens under one mutex, never held across a
// network send, so per-peer establishment can interleave freely and
// one peer's failure cannot corrupt another's state.
type Controller struct {
	cfg    Config
	log    *slog.Logger
	selfID string

	mu           sync.Mutex
	peers        map[string]*peerRecord
	messages     []Message
	local        *capture.Stream
	sig          SignalingSession
	sigConnected bool
	adapterReady bool
	audioOn      bool
	videoOn      bool
	lastErr      error
	reconnect    *time.Timer
	started      bool
	closed       bool

	peersSeen int
	sent      int
	received  int
	startedAt time.Time

	updates chan struct{}
}

// New validates cfg and builds a Controller. Start must be called
// before the session does anything.
func New(cfg Config) (*Controller, error) {
	if cfg.RoomID == "" || cfg.UserID == "" || cfg.UserName == "" {
		return nil, errors.New("session: room id, user id and user name are required")
	}
	if cfg.Device == nil || cfg.Adapter == nil {
		return nil, errors.New("session: capture device and peer link adapter are required")
	}
	if cfg.Dial == nil {
		cfg.Dial = defaultDialer
	}
	if cfg.ReconnectDelay == nil {
		cfg.ReconnectDelay = defaultReconnectDelay
	}

	return &Controller{
		cfg:     cfg,
		log:     slog.Default().With("room", cfg.RoomID, "user", cfg.UserID),
		selfID:  ids.PeerID(cfg.RoomID, cfg.UserID),
		peers:   make(map[string]*peerRecord),
		updates: make(chan struct{}, 1),
	}, nil
}

// SelfID returns the derived local peer identifier.
func (c *Controller) SelfID() string { return c.selfID }

// Start runs the bootstrap sequence: local capture (degrading to
// audio-only), peer link, then the signaling connection and join. A
// bootstrap failure is terminal; it is surfaced once and not retried.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("session: already started")
	}
	c.started = true
	c.startedAt = time.Now()
	c.mu.Unlock()

	local, err := c.cfg.Device.Acquire(ctx, true, true)
	if err != nil {
		c.log.Warn("video capture unavailable, degrading to audio only", "err", err)
		local, err = c.cfg.Device.Acquire(ctx, true, false)
	}
	if err != nil {
		err = fmt.Errorf("acquire local media: %w", err)
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.local = local
	c.audioOn = local.AudioEnabled()
	c.videoOn = local.VideoEnabled()
	c.mu.Unlock()

	c.cfg.Adapter.BindSender(c.sendSignal)
	if err := c.cfg.Adapter.Start(c.selfID, local); err != nil {
		err = fmt.Errorf("start peer link: %w", err)
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.adapterReady = true
	c.mu.Unlock()

	go c.adapterLoop()

	if err := c.connectSignaling(); err != nil {
		c.fail(err)
		return err
	}

	c.notify()
	return nil
}

// connectSignaling dials the server and sends join-room once the
// connection is up.
func (c *Controller) connectSignaling() error {
	s, err := c.cfg.Dial(c.cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("connect signaling: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.Close()
		return ErrClosed
	}
	c.sig = s
	c.sigConnected = true
	c.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID: c.cfg.RoomID,
		PeerID: c.selfID,
	})
	if err == nil {
		err = s.Send(env)
	}
	if err != nil {
		// Socket loss will also surface through Incoming closing.
		c.log.Warn("join-room send failed", "err", err)
	}

	go c.signalingLoop(s)
	c.notify()
	return nil
}

func (c *Controller) signalingLoop(s SignalingSession) {
	for env := range s.Incoming() {
		c.handleEnvelope(env)
	}
	c.onSignalingClosed(s)
}

func (c *Controller) handleEnvelope(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeRoomPeers:
		var p protocol.RoomPeersPayload
		if err := env.DecodePayload(&p); err != nil {
			c.log.Warn("dropping malformed room-peers", "err", err)
			return
		}
		for _, id := range p.Peers {
			go c.EnsureConnected(id)
		}

	case protocol.TypePeerJoined:
		var p protocol.PeerJoinedPayload
		if err := env.DecodePayload(&p); err != nil {
			c.log.Warn("dropping malformed peer-joined", "err", err)
			return
		}
		go c.EnsureConnected(p.PeerID)

	case protocol.TypePeerLeft:
		var p protocol.PeerLeftPayload
		if err := env.DecodePayload(&p); err != nil {
			c.log.Warn("dropping malformed peer-left", "err", err)
			return
		}
		c.removePeer(p.PeerID, "left room")

	case protocol.TypeSignal:
		var p protocol.SignalPayload
		if err := env.DecodePayload(&p); err != nil || p.SenderID == "" {
			c.log.Warn("dropping malformed signal", "err", err)
			return
		}
		c.cfg.Adapter.HandleSignal(p.SenderID, p.Data)

	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err := env.DecodePayload(&p); err != nil {
			return
		}
		c.log.Warn("server error notice", "message", p.Message)
		c.mu.Lock()
		c.lastErr = fmt.Errorf("signaling: %s", p.Message)
		c.mu.Unlock()
		c.notify()

	default:
		c.log.Debug("unknown signaling message", "type", env.Type)
	}
}

// EnsureConnected makes sure a connection attempt toward peerID exists.
// Idempotent: a peer already in the registry is left alone, which is
// what resolves the simultaneous outbound/inbound race. On any
// initiation failure the placeholder is removed and the attempt is
// abandoned; only room-level events can re-trigger it.
func (c *Controller) EnsureConnected(peerID string) {
	if peerID == "" || peerID == c.selfID {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.peers[peerID]; ok {
		c.mu.Unlock()
		return
	}
	rec := &peerRecord{id: peerID, name: placeholderName(peerID)}
	c.peers[peerID] = rec
	c.peersSeen++
	c.mu.Unlock()
	c.notify()

	data, err := c.cfg.Adapter.Connect(peerID)
	var media peerlink.MediaChannel
	if err == nil {
		media, err = c.cfg.Adapter.Call(peerID)
		if err != nil {
			data.Close()
		}
	}
	if err != nil {
		c.log.Warn("peer connect failed", "peer", peerID, "err", err)
		c.mu.Lock()
		if cur, ok := c.peers[peerID]; ok && cur == rec {
			delete(c.peers, peerID)
		}
		c.mu.Unlock()
		c.notify()
		return
	}

	c.mu.Lock()
	cur, ok := c.peers[peerID]
	if !ok || cur != rec {
		// Removed (or replaced) while we were connecting.
		c.mu.Unlock()
		data.Close()
		media.Close()
		return
	}
	cur.data = data
	cur.media = media
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) adapterLoop() {
	ad := c.cfg.Adapter
	for {
		select {
		case <-ad.Done():
			return
		case ev := <-ad.Events():
			c.handleAdapterEvent(ev)
		}
	}
}

func (c *Controller) handleAdapterEvent(ev peerlink.Event) {
	switch ev.Kind {
	case peerlink.EventDataOpen:
		// May be an inbound channel from a peer we have not
		// discovered yet; create the record on demand.
		if !c.ensureRecord(ev.PeerID, func(rec *peerRecord) {
			if rec.data == nil {
				rec.data = ev.Chan
			}
		}) {
			return
		}
		c.sendHandshake(ev.PeerID, ev.Chan)
		c.notify()

	case peerlink.EventDataMessage:
		c.handleDataMessage(ev.PeerID, ev.Data)

	case peerlink.EventDataClosed:
		c.removePeer(ev.PeerID, "data channel closed")

	case peerlink.EventDataError:
		c.log.Warn("data channel error", "peer", ev.PeerID, "err", ev.Err)
		c.removePeer(ev.PeerID, "data channel error")

	case peerlink.EventMediaOpen:
		if !c.ensureRecord(ev.PeerID, func(rec *peerRecord) {
			if rec.media == nil {
				rec.media = ev.Media
			}
		}) {
			return
		}
		c.notify()

	case peerlink.EventMediaStream:
		c.mu.Lock()
		rec, ok := c.peers[ev.PeerID]
		if ok {
			rec.stream = ev.Stream
		}
		c.mu.Unlock()
		if !ok {
			// Stream for an unknown peer: unreachable given the
			// on-demand record rule, but harmless to ignore.
			c.log.Debug("stream for unknown peer", "peer", ev.PeerID)
			return
		}
		c.notify()

	case peerlink.EventMediaClosed:
		c.removePeer(ev.PeerID, "media channel closed")

	case peerlink.EventMediaError:
		c.log.Warn("media channel error", "peer", ev.PeerID, "err", ev.Err)
		c.removePeer(ev.PeerID, "media channel error")
	}
}

// ensureRecord gets or creates the registry entry for peerID and
// applies attach under the lock. Returns false once torn down.
func (c *Controller) ensureRecord(peerID string, attach func(*peerRecord)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	rec, ok := c.peers[peerID]
	if !ok {
		rec = &peerRecord{id: peerID, name: placeholderName(peerID)}
		c.peers[peerID] = rec
		c.peersSeen++
	}
	attach(rec)
	return true
}

// sendHandshake sends our identity exactly once per freshly opened
// data channel.
func (c *Controller) sendHandshake(peerID string, ch peerlink.DataChannel) {
	dm, err := protocol.NewDataMessage(protocol.DataTypeHandshake, protocol.HandshakePayload{
		UserID:   c.cfg.UserID,
		UserName: c.cfg.UserName,
	})
	var frame []byte
	if err == nil {
		frame, err = protocol.EncodeDataMessage(dm)
	}
	if err == nil {
		err = ch.Send(frame)
	}
	if err != nil {
		c.log.Warn("handshake send failed", "peer", peerID, "err", err)
	}
}

func (c *Controller) handleDataMessage(peerID string, data []byte) {
	dm, err := protocol.DecodeDataMessage(data)
	if err != nil {
		c.log.Warn("dropping malformed data frame", "peer", peerID, "err", err)
		return
	}

	switch dm.Type {
	case protocol.DataTypeHandshake:
		var p protocol.HandshakePayload
		if err := dm.DecodePayload(&p); err != nil || p.UserName == "" {
			c.log.Warn("dropping malformed handshake", "peer", peerID, "err", err)
			return
		}
		c.mu.Lock()
		rec, ok := c.peers[peerID]
		changed := ok && rec.name != p.UserName
		if changed {
			rec.name = p.UserName
		}
		c.mu.Unlock()
		if changed {
			c.log.Info("peer identified", "peer", peerID, "name", p.UserName)
			c.notify()
		}

	case protocol.DataTypeChat:
		var p protocol.ChatPayload
		if err := dm.DecodePayload(&p); err != nil {
			c.log.Warn("dropping malformed chat message", "peer", peerID, "err", err)
			return
		}
		c.mu.Lock()
		c.messages = append(c.messages, Message{
			Sender:     p.UserID,
			SenderName: p.UserName,
			Content:    p.Content,
			Timestamp:  p.Timestamp,
		})
		c.received++
		c.mu.Unlock()
		c.notify()

	default:
		c.log.Debug("unknown data message", "peer", peerID, "type", dm.Type)
	}
}

// removePeer runs the full-removal policy: the record is dropped and
// whichever channel is still up is closed as part of cleanup. Safe for
// peers that never got channels (pure signaling churn).
func (c *Controller) removePeer(peerID, reason string) {
	c.mu.Lock()
	rec, ok := c.peers[peerID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.peers, peerID)
	c.mu.Unlock()

	closeRecord(rec)
	c.log.Info("peer removed", "peer", peerID, "reason", reason)
	c.notify()
}

func closeRecord(rec *peerRecord) {
	if rec.data != nil {
		rec.data.Close()
	}
	if rec.media != nil {
		rec.media.Close()
	}
}

// SendChatMessage appends to the local transcript unconditionally and
// attempts best-effort delivery to every peer with an open data
// channel. Per-peer failures are logged, never rolled back.
func (c *Controller) SendChatMessage(content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	now := time.Now()
	dm, err := protocol.NewDataMessage(protocol.DataTypeChat, protocol.ChatPayload{
		UserID:    c.cfg.UserID,
		UserName:  c.cfg.UserName,
		Content:   content,
		Timestamp: now,
	})
	var frame []byte
	if err == nil {
		frame, err = protocol.EncodeDataMessage(dm)
	}
	if err != nil {
		c.log.Error("chat encode failed", "err", err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.messages = append(c.messages, Message{
		Sender:     c.cfg.UserID,
		SenderName: c.cfg.UserName,
		Content:    content,
		Timestamp:  now,
	})
	c.sent++
	targets := make([]peerlink.DataChannel, 0, len(c.peers))
	for _, rec := range c.peers {
		if rec.data != nil && rec.data.IsOpen() {
			targets = append(targets, rec.data)
		}
	}
	c.mu.Unlock()

	for _, t := range targets {
		if err := t.Send(frame); err != nil {
			c.log.Warn("chat delivery failed", "err", err)
		}
	}
	c.notify()
}

// ToggleAudio flips the local audio mute state.
func (c *Controller) ToggleAudio() {
	c.mu.Lock()
	if c.closed || c.local == nil {
		c.mu.Unlock()
		return
	}
	c.audioOn = !c.audioOn
	local, on := c.local, c.audioOn
	c.mu.Unlock()

	local.SetAudioEnabled(on)
	c.notify()
}

// ToggleVideo flips the local video mute state.
func (c *Controller) ToggleVideo() {
	c.mu.Lock()
	if c.closed || c.local == nil {
		c.mu.Unlock()
		return
	}
	c.videoOn = !c.videoOn
	local, on := c.local, c.videoOn
	c.mu.Unlock()

	local.SetVideoEnabled(on)
	c.notify()
}

// onSignalingClosed reacts to the signaling connection dying. For an
// abnormal loss exactly one reconnection attempt is scheduled; normal
// teardown schedules nothing.
func (c *Controller) onSignalingClosed(s SignalingSession) {
	c.mu.Lock()
	if c.sig != s {
		// A stale connection's loop outliving its replacement.
		c.mu.Unlock()
		return
	}
	c.sig = nil
	c.sigConnected = false
	c.mu.Unlock()
	c.notify()

	c.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer if teardown has
// not happened and no timer is already pending.
func (c *Controller) scheduleReconnect() {
	c.mu.Lock()
	if c.closed || c.reconnect != nil {
		c.mu.Unlock()
		return
	}
	delay := c.cfg.ReconnectDelay()
	c.reconnect = time.AfterFunc(delay, c.redial)
	c.mu.Unlock()

	c.log.Warn("signaling connection lost, reconnect scheduled", "delay", delay)
}

func (c *Controller) redial() {
	c.mu.Lock()
	c.reconnect = nil
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.connectSignaling(); err != nil {
		c.log.Warn("reconnect failed", "err", err)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.notify()
		c.scheduleReconnect()
	}
}

// sendSignal is the outbound metadata path bound into the adapter.
func (c *Controller) sendSignal(targetID string, data []byte) error {
	c.mu.Lock()
	s := c.sig
	c.mu.Unlock()
	if s == nil {
		return errors.New("session: signaling not connected")
	}

	env, err := protocol.NewEnvelope(protocol.TypeSignal, protocol.SignalPayload{
		TargetID: targetID,
		Data:     data,
	})
	if err != nil {
		return err
	}
	return s.Send(env)
}

// Leave tears the whole session down: cancels any pending reconnect,
// closes signaling with a normal closure, stops capture, closes every
// peer channel and clears the registry. Safe to call multiple times
// and from any state.
func (c *Controller) Leave() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	sig := c.sig
	c.sig = nil
	c.sigConnected = false
	c.adapterReady = false
	local := c.local
	c.local = nil
	peers := c.peers
	c.peers = make(map[string]*peerRecord)
	c.messages = nil
	c.lastErr = nil
	c.audioOn = false
	c.videoOn = false
	c.mu.Unlock()

	if sig != nil {
		sig.Close()
	}
	for _, rec := range peers {
		closeRecord(rec)
	}
	c.cfg.Adapter.Close()
	if local != nil {
		local.Stop()
	}

	c.log.Info("session torn down")
	close(c.updates)
}

// Snapshot returns a consistent view for the presentation layer.
// Peers are sorted by id purely for display stability.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	peers := make([]Peer, 0, len(c.peers))
	for _, rec := range c.peers {
		peers = append(peers, Peer{
			ID:       rec.id,
			Name:     rec.name,
			Stream:   rec.stream,
			DataOpen: rec.data != nil && rec.data.IsOpen(),
		})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })

	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)

	return Snapshot{
		Peers:              peers,
		Messages:           msgs,
		SignalingConnected: c.sigConnected,
		AdapterReady:       c.adapterReady,
		AudioEnabled:       c.audioOn,
		VideoEnabled:       c.videoOn,
		LastError:          c.lastErr,
	}
}

// Stats returns the session counters. They survive Leave so a summary
// can be printed after teardown.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		PeersSeen:        c.peersSeen,
		MessagesSent:     c.sent,
		MessagesReceived: c.received,
		StartedAt:        c.startedAt,
	}
}

// Updates returns a coalescing change notification channel. It is
// closed on teardown.
func (c *Controller) Updates() <-chan struct{} { return c.updates }

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
