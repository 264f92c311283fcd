package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := NewRoomCode()
		require.Len(t, code, roomCodeLength)
		for _, r := range code {
			require.Contains(t, roomCodeAlphabet, string(r))
		}
		seen[code] = true
	}
	// 50 draws from 36^6 colliding down to a handful would mean the
	// generator is broken.
	require.Greater(t, len(seen), 45)
}

func TestNewUserID(t *testing.T) {
	id := NewUserID()
	require.True(t, strings.HasPrefix(id, "user_"))
	require.Len(t, id, len("user_")+8)
	require.NotEqual(t, id, NewUserID())
}

func TestPeerID(t *testing.T) {
	require.Equal(t, "AB12C9-user_ab12cd34", PeerID("AB12C9", "user_ab12cd34"))
}
