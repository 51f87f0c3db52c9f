package signaling

import (
	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

func (h *Hub) handleJoin(c *Client, m *Message) {
	var p protocol.JoinRoomPayload
	if err := decodePayload(m.Payload, &p); err != nil {
		h.sendError(c, "Invalid join-room payload")
		return
	}
	if p.RoomID == "" || p.UserID == "" {
		h.sendError(c, "roomId and userId are required")
		return
	}
	role := p.EffectiveRole()

	// A channel belongs to one room under one id at a time.
	if c.state == stateJoined && (c.membership.RoomID != p.RoomID || c.membership.UserID != p.UserID) {
		h.leave(c)
	}

	room, replaced, created := h.registry.Join(p.RoomID, p.UserID, role, c)
	if created {
		h.log.Info("room created", "room", room.ID)
	}
	if replaced != nil && replaced.client != c {
		// Last join wins; the old channel stays open but loses its seat.
		replaced.client.detach()
		h.log.Info("participant session replaced",
			"room", room.ID,
			"user", p.UserID,
			"previousClient", replaced.client.ID,
		)
	}
	c.attach(Membership{RoomID: p.RoomID, UserID: p.UserID, Role: role})

	h.broadcast(room, protocol.EventUserConnected, protocol.PresencePayload{UserID: p.UserID, Role: role}, c)
	h.send(c, protocol.EventExistingMessages, room.History())

	h.log.Info("participant joined",
		"room", room.ID,
		"user", p.UserID,
		"role", role,
		"participants", room.Len(),
	)
	h.publishSize()
}

func (h *Hub) handleLeave(c *Client, m *Message) {
	if c.state != stateJoined {
		h.reply(c, m, protocol.LeaveRoomResponse{Success: false, Error: "Join a room first"})
		return
	}
	h.leave(c)
	h.reply(c, m, protocol.LeaveRoomResponse{Success: true})
}

func (h *Hub) handleGetParticipants(c *Client, m *Message) {
	if c.state != stateJoined {
		h.reply(c, m, protocol.ParticipantsResponse{Success: false, Error: "Join a room first"})
		return
	}
	room := h.currentRoom(c)
	if room == nil {
		h.log.Debug("room not found for get-participants", "room", c.membership.RoomID, "client", c.ID)
		h.reply(c, m, protocol.ParticipantsResponse{Success: false, Error: "Room not found"})
		return
	}
	h.reply(c, m, protocol.ParticipantsResponse{
		Success:      true,
		Participants: room.Roster(c.membership.UserID),
	})
}

// leave drops c's membership, tells the remaining participants and arms the
// empty-room timer. It reports whether c actually held a seat.
func (h *Hub) leave(c *Client) bool {
	if c.state != stateJoined {
		return false
	}
	ms := c.membership
	c.detach()

	room, ok := h.registry.Leave(ms.RoomID, ms.UserID, c)
	if !ok {
		return false
	}

	h.broadcast(room, protocol.EventUserDisconnected, protocol.PresencePayload{UserID: ms.UserID}, nil)
	h.log.Info("participant left", "room", room.ID, "user", ms.UserID, "participants", room.Len())

	if room.Len() == 0 {
		h.scheduleReap(room)
	}
	h.publishSize()
	return true
}
