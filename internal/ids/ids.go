// Package ids generates the identifiers used across a meeting session:
// short room codes, per-session user ids and the derived peer ids.
package ids

import (
	"crypto/rand"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
)

// NewRoomCode returns a short random room code, e.g. "AB12C9".
func NewRoomCode() string {
	var b strings.Builder
	b.Grow(roomCodeLength)
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[randomIndex(len(roomCodeAlphabet))])
	}
	return b.String()
}

// NewUserID returns an ephemeral per-session user id. A fresh one is
// generated for every client start; it is never persisted.
func NewUserID() string {
	return "user_" + uuid.NewString()[:8]
}

// PeerID derives the globally unique peer identifier for a user inside
// a room. Both sides of every connection compute it the same way.
func PeerID(roomID, userID string) string {
	return roomID + "-" + userID
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
