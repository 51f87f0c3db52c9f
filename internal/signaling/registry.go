package signaling

import (
	"time"

	"github.com/google/uuid"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

// DefaultHistoryLimit is the number of chat messages kept per room.
const DefaultHistoryLimit = 100

// Registry is the in-memory room table.
//
// It is not safe for concurrent use. The Hub owns one and only touches it
// from its Run goroutine.
type Registry struct {
	rooms        map[string]*Room
	participants int
	historyLimit int

	now func() time.Time
}

// NewRegistry creates an empty registry keeping at most historyLimit chat
// messages per room.
func NewRegistry(historyLimit int) *Registry {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Registry{
		rooms:        make(map[string]*Room),
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// Len returns the number of rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}

// Participants returns the number of participants across all rooms.
func (r *Registry) Participants() int {
	return r.participants
}

// Room looks up a room by id.
func (r *Registry) Room(roomID string) (*Room, bool) {
	room, ok := r.rooms[roomID]
	return room, ok
}

// Join upserts userID into roomID, creating the room on first use. A previous
// entry for the same user is overwritten and returned as replaced.
func (r *Registry) Join(roomID, userID, role string, c *Client) (room *Room, replaced *Participant, created bool) {
	now := r.now()

	room, ok := r.rooms[roomID]
	if !ok {
		room = newRoom(roomID, r.historyLimit, now)
		r.rooms[roomID] = room
		created = true
	}

	replaced, existed := room.participants[userID]
	if !existed {
		r.participants++
	}
	room.participants[userID] = &Participant{
		UserID:   userID,
		Role:     role,
		JoinedAt: now,
		client:   c,
	}
	room.LastActivityAt = now
	room.emptySince = time.Time{}

	return room, replaced, created
}

// Leave removes userID from roomID, but only while the entry still belongs
// to c. A later join under the same id is left untouched.
func (r *Registry) Leave(roomID, userID string, c *Client) (*Room, bool) {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	p, ok := room.participants[userID]
	if !ok || p.client != c {
		return room, false
	}

	now := r.now()
	delete(room.participants, userID)
	r.participants--
	room.LastActivityAt = now
	if len(room.participants) == 0 {
		room.emptySince = now
	}
	return room, true
}

// PostMessage appends a chat message to room, evicting the oldest entries
// beyond the history limit.
func (r *Registry) PostMessage(room *Room, userID, role, text string) protocol.ChatMessage {
	now := r.now()
	msg := protocol.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Text:      text,
		Timestamp: now.UTC(),
	}
	room.appendMessage(msg)
	room.LastActivityAt = now
	return msg
}

// Touch marks activity on room.
func (r *Registry) Touch(room *Room) {
	room.LastActivityAt = r.now()
}

// ReapEmpty deletes roomID if it has had no participants for at least grace.
func (r *Registry) ReapEmpty(roomID string, grace time.Duration) (*Room, bool) {
	room, ok := r.rooms[roomID]
	if !ok || len(room.participants) > 0 || room.emptySince.IsZero() {
		return nil, false
	}
	if r.now().Sub(room.emptySince) < grace {
		return nil, false
	}
	r.delete(room)
	return room, true
}

// SweepStale deletes every room idle for longer than staleAfter, whether or
// not it still has participants.
func (r *Registry) SweepStale(staleAfter time.Duration) []*Room {
	now := r.now()
	var swept []*Room
	for _, room := range r.rooms {
		if now.Sub(room.LastActivityAt) > staleAfter {
			swept = append(swept, room)
		}
	}
	for _, room := range swept {
		r.delete(room)
	}
	return swept
}

func (r *Registry) delete(room *Room) {
	r.participants -= len(room.participants)
	delete(r.rooms, room.ID)
}
