package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireBothKinds(t *testing.T) {
	s, err := (&Synthetic{}).Acquire(context.Background(), true, true)
	require.NoError(t, err)
	defer s.Stop()

	require.True(t, s.HasVideo())
	require.Len(t, s.Tracks(), 2)
	require.True(t, s.AudioEnabled())
	require.True(t, s.VideoEnabled())
}

func TestAcquireAudioOnly(t *testing.T) {
	s, err := (&Synthetic{}).Acquire(context.Background(), true, false)
	require.NoError(t, err)
	defer s.Stop()

	require.False(t, s.HasVideo())
	require.Len(t, s.Tracks(), 1)
	require.True(t, s.AudioEnabled())
	require.False(t, s.VideoEnabled())
}

func TestAcquireDenied(t *testing.T) {
	d := &Synthetic{DenyVideo: true}
	_, err := d.Acquire(context.Background(), true, true)
	require.ErrorIs(t, err, ErrNoDevice)

	s, err := d.Acquire(context.Background(), true, false)
	require.NoError(t, err)
	s.Stop()

	_, err = (&Synthetic{DenyAudio: true}).Acquire(context.Background(), true, false)
	require.ErrorIs(t, err, ErrNoDevice)

	_, err = (&Synthetic{}).Acquire(context.Background(), false, false)
	require.ErrorIs(t, err, ErrNoDevice)
}

func TestToggles(t *testing.T) {
	s, err := (&Synthetic{}).Acquire(context.Background(), true, true)
	require.NoError(t, err)
	defer s.Stop()

	s.SetAudioEnabled(false)
	require.False(t, s.AudioEnabled())
	require.True(t, s.VideoEnabled())

	s.SetAudioEnabled(true)
	s.SetVideoEnabled(false)
	require.True(t, s.AudioEnabled())
	require.False(t, s.VideoEnabled())
}

func TestStopIsIdempotent(t *testing.T) {
	s, err := (&Synthetic{}).Acquire(context.Background(), true, true)
	require.NoError(t, err)

	s.Stop()
	s.Stop()

	select {
	case <-s.Stopped():
	default:
		t.Fatal("stopped channel not closed")
	}
}
