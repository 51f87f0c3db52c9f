package signaling

import (
	"context"
	"time"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/telemetry"
)

func (h *Hub) publishSize() {
	telemetry.SetRegistrySize(h.registry.Len(), h.registry.Participants())
}

func (h *Hub) snapshot() protocol.HealthStatus {
	return protocol.HealthStatus{
		Status:            "OK",
		ActiveRooms:       h.registry.Len(),
		TotalParticipants: h.registry.Participants(),
		Uptime:            time.Since(h.startedAt).Seconds(),
		Timestamp:         time.Now().UTC(),
	}
}

func (h *Hub) logStats() {
	h.log.Info("server stats",
		"rooms", h.registry.Len(),
		"participants", h.registry.Participants(),
		"clients", len(h.clients),
		"uptime", time.Since(h.startedAt).Truncate(time.Second).String(),
	)
}

// Snapshot returns a point-in-time view of the registry for health checks.
func (h *Hub) Snapshot(ctx context.Context) (protocol.HealthStatus, error) {
	reply := make(chan protocol.HealthStatus, 1)
	select {
	case h.snapshots <- reply:
	case <-h.done:
		return protocol.HealthStatus{}, ErrHubStopped
	case <-ctx.Done():
		return protocol.HealthStatus{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return protocol.HealthStatus{}, ctx.Err()
	}
}
