package signaling

import (
	"sort"
	"time"

	"github.com/gammazero/deque"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

// Participant is a user joined to a room. client is a routing back-reference;
// the channel owns its own lifecycle.
type Participant struct {
	UserID   string
	Role     string
	JoinedAt time.Time

	client *Client
}

// Room is a group of participants sharing chat history and signaling scope.
type Room struct {
	ID             string
	CreatedAt      time.Time
	LastActivityAt time.Time

	// emptySince is set when the last participant leaves and cleared on join.
	emptySince time.Time

	participants map[string]*Participant
	history      *deque.Deque[protocol.ChatMessage]
	historyLimit int
}

func newRoom(id string, historyLimit int, now time.Time) *Room {
	return &Room{
		ID:             id,
		CreatedAt:      now,
		LastActivityAt: now,
		participants:   make(map[string]*Participant),
		history:        deque.New[protocol.ChatMessage](),
		historyLimit:   historyLimit,
	}
}

// Len returns the number of joined participants.
func (r *Room) Len() int {
	return len(r.participants)
}

// Participant looks up a participant by user id.
func (r *Room) Participant(userID string) (*Participant, bool) {
	p, ok := r.participants[userID]
	return p, ok
}

// Roster lists participants other than exclude, oldest join first.
func (r *Room) Roster(exclude string) []protocol.Participant {
	roster := make([]protocol.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.UserID == exclude {
			continue
		}
		roster = append(roster, protocol.Participant{
			UserID:   p.UserID,
			Role:     p.Role,
			JoinedAt: p.JoinedAt,
		})
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].UserID < roster[j].UserID
		}
		return roster[i].JoinedAt.Before(roster[j].JoinedAt)
	})
	return roster
}

// History returns a copy of the chat history, oldest first.
func (r *Room) History() []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, 0, r.history.Len())
	for i := 0; i < r.history.Len(); i++ {
		out = append(out, r.history.At(i))
	}
	return out
}

func (r *Room) appendMessage(m protocol.ChatMessage) {
	r.history.PushBack(m)
	for r.history.Len() > r.historyLimit {
		r.history.PopFront()
	}
}

// clients returns the channels of every participant except skip.
func (r *Room) clients(skip *Client) []*Client {
	out := make([]*Client, 0, len(r.participants))
	for _, p := range r.participants {
		if p.client == skip {
			continue
		}
		out = append(out, p.client)
	}
	return out
}
