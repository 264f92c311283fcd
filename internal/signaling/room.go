package signaling

// Room is a coordination scope identified by a short code. It owns a
// member set; ordering is irrelevant. A room is created on the first
// join to an unseen id and deleted the moment its member set empties.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	// Members holds every live signaling connection currently joined.
	Members map[*Client]bool
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		Members: make(map[*Client]bool),
	}
}

// peerIDs returns the peer ids of all members except exclude and any
// member whose id is still unset.
func (r *Room) peerIDs(exclude *Client) []string {
	ids := make([]string, 0, len(r.Members))
	for m := range r.Members {
		if m == exclude || m.peerID == "" {
			continue
		}
		ids = append(ids, m.peerID)
	}
	return ids
}
