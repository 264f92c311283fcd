// Package capture abstracts acquisition of the local audio/video
// source that gets published to every peer. The controller owns
// exactly one Stream per session and stops it once on teardown.
package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// ErrNoDevice is returned when no capture source at all could be
// acquired. The session treats this as fatal.
var ErrNoDevice = errors.New("capture: no usable device")

// Device acquires local media. Implementations must return a Stream
// with at least an audio track when audio is requested.
type Device interface {
	// Acquire opens the device. video may be refused by returning an
	// error; callers degrade to audio-only before giving up.
	Acquire(ctx context.Context, audio, video bool) (*Stream, error)
}

// Stream bundles the local tracks plus their mute state. Toggling a
// kind pauses its writer; the track itself stays attached so no
// renegotiation is needed.
type Stream struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	audioOn atomic.Bool
	videoOn atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
}

func newStream(audio, video *webrtc.TrackLocalStaticSample) *Stream {
	s := &Stream{
		audio: audio,
		video: video,
		stop:  make(chan struct{}),
	}
	s.audioOn.Store(audio != nil)
	s.videoOn.Store(video != nil)
	return s
}

// Tracks returns the local tracks to publish, audio first.
func (s *Stream) Tracks() []webrtc.TrackLocal {
	var out []webrtc.TrackLocal
	if s.audio != nil {
		out = append(out, s.audio)
	}
	if s.video != nil {
		out = append(out, s.video)
	}
	return out
}

// HasVideo reports whether a video track was acquired.
func (s *Stream) HasVideo() bool { return s.video != nil }

// SetAudioEnabled pauses or resumes the audio writer.
func (s *Stream) SetAudioEnabled(on bool) { s.audioOn.Store(on) }

// SetVideoEnabled pauses or resumes the video writer.
func (s *Stream) SetVideoEnabled(on bool) { s.videoOn.Store(on) }

// AudioEnabled reports the audio mute state.
func (s *Stream) AudioEnabled() bool { return s.audioOn.Load() }

// VideoEnabled reports the video mute state.
func (s *Stream) VideoEnabled() bool { return s.videoOn.Load() }

// Stop halts all writers. Safe to call multiple times.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Stopped returns a channel closed once the stream is stopped.
func (s *Stream) Stopped() <-chan struct{} { return s.stop }
