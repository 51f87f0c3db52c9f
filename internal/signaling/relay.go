package signaling

import (
	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/telemetry"
)

// handleSignal forwards an offer, answer or ICE candidate to exactly one
// participant of the sender's room. The body is never inspected.
func (h *Hub) handleSignal(c *Client, m *Message) {
	kind := m.Type

	var p protocol.SignalPayload
	if err := decodePayload(m.Payload, &p); err != nil {
		telemetry.SignalDropped(kind, "invalid")
		h.sendError(c, "Invalid "+kind+" payload")
		return
	}

	room := h.currentRoom(c)
	if room == nil {
		telemetry.SignalDropped(kind, "room_not_found")
		h.log.Debug("room not found for signal", "event", kind, "room", c.membership.RoomID)
		h.sendError(c, "Room not found")
		return
	}

	target, ok := room.Participant(p.TargetUserID)
	if !ok {
		telemetry.SignalDropped(kind, "target_not_found")
		h.log.Debug("target user not found",
			"event", kind,
			"room", room.ID,
			"sender", c.membership.UserID,
			"target", p.TargetUserID,
		)
		h.sendError(c, "Target user not found")
		return
	}

	out := protocol.NewSignalPayload(kind, p.Body(kind))
	out.SenderID = c.membership.UserID
	h.send(target.client, kind, out)

	h.registry.Touch(room)
	telemetry.SignalRelayed(kind)

	h.log.Debug("relaying signal",
		"event", kind,
		"room", room.ID,
		"sender", c.membership.UserID,
		"target", target.UserID,
	)
}
