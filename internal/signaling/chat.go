package signaling

import (
	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/telemetry"
)

const logPreviewLength = 50

func (h *Hub) handleSendMessage(c *Client, m *Message) {
	text, err := decodeText(m.Payload)
	if err != nil {
		h.sendError(c, "Invalid send-message payload")
		return
	}

	room := h.currentRoom(c)
	if room == nil {
		h.log.Debug("room not found for message", "room", c.membership.RoomID, "client", c.ID)
		h.sendError(c, "Room not found")
		return
	}

	msg := h.registry.PostMessage(room, c.membership.UserID, c.membership.Role, text)

	// The sender renders its own message from this echo.
	h.broadcast(room, protocol.EventReceiveMessage, msg, nil)
	telemetry.ChatMessageRelayed()

	h.log.Debug("message sent", "room", room.ID, "user", msg.UserID, "text", preview(text))
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= logPreviewLength {
		return text
	}
	return string(r[:logPreviewLength]) + "..."
}
