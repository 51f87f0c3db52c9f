package signaling

import (
	"time"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/telemetry"
)

// scheduleReap arms the fast-path timer for an empty room. The timer only
// posts the room id back into Run; reapEmpty re-checks before deleting.
func (h *Hub) scheduleReap(room *Room) {
	roomID := room.ID
	time.AfterFunc(h.opts.EmptyRoomGrace, func() {
		select {
		case h.expire <- roomID:
		case <-h.done:
		}
	})
}

func (h *Hub) reapEmpty(roomID string) {
	room, ok := h.registry.ReapEmpty(roomID, h.opts.EmptyRoomGrace)
	if !ok {
		return
	}
	telemetry.RoomReaped("empty", time.Since(room.CreatedAt))
	h.log.Info("cleaned up empty room", "room", roomID)
	h.publishSize()
}

func (h *Hub) sweep() {
	if h.opts.StaleAfter <= 0 {
		return
	}
	swept := h.registry.SweepStale(h.opts.StaleAfter)
	for _, room := range swept {
		telemetry.RoomReaped("stale", time.Since(room.CreatedAt))
		h.log.Info("cleaned up inactive room", "room", room.ID, "participants", room.Len())
	}
	if len(swept) > 0 {
		h.log.Info("inactive room sweep finished", "cleaned", len(swept), "rooms", h.registry.Len())
		h.publishSize()
	}
}
