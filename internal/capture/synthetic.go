package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 100 * time.Millisecond
)

// silentOpusFrame is a minimal Opus frame decoding to silence.
var silentOpusFrame = []byte{0xf8, 0xff, 0xfe}

// Synthetic is a capture device that produces silent audio and a
// static video test frame. It stands in where no hardware capture is
// available (headless hosts, CI) and keeps the publish path, mute
// toggles and teardown real.
type Synthetic struct {
	// DenyAudio and DenyVideo simulate a device refusing a kind.
	DenyAudio bool
	DenyVideo bool
}

// Acquire implements Device.
func (d *Synthetic) Acquire(ctx context.Context, audio, video bool) (*Stream, error) {
	if audio && d.DenyAudio {
		return nil, fmt.Errorf("%w: audio denied", ErrNoDevice)
	}
	if video && d.DenyVideo {
		return nil, fmt.Errorf("%w: video denied", ErrNoDevice)
	}
	if !audio && !video {
		return nil, ErrNoDevice
	}

	var audioTrack, videoTrack *webrtc.TrackLocalStaticSample
	var err error

	if audio {
		audioTrack, err = webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "meetly")
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
	}
	if video {
		videoTrack, err = webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "meetly")
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
	}

	s := newStream(audioTrack, videoTrack)

	if audioTrack != nil {
		go s.writeLoop(audioTrack, audioFrameInterval, silentOpusFrame, s.AudioEnabled)
	}
	if videoTrack != nil {
		go s.writeLoop(videoTrack, videoFrameInterval, testPatternFrame, s.VideoEnabled)
	}

	return s, nil
}

// writeLoop pushes one sample per tick while the kind is enabled.
// Write errors are ignored: samples written before any peer is
// subscribed are simply discarded by pion.
func (s *Stream) writeLoop(track *webrtc.TrackLocalStaticSample, interval time.Duration, frame []byte, enabled func() bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if !enabled() {
				continue
			}
			_ = track.WriteSample(media.Sample{Data: frame, Duration: interval})
		}
	}
}

// testPatternFrame is a tiny VP8 keyframe used as a static picture.
var testPatternFrame = []byte{
	0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x10, 0x00,
	0x10, 0x00, 0x00, 0x47, 0x08, 0x85, 0x85, 0x88,
	0x85, 0x84, 0x88, 0x02, 0x02, 0x00, 0x0c, 0x0d,
	0x60, 0x00, 0xfe, 0xff, 0xab, 0x50, 0x80,
}
