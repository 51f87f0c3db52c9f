package client

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

// Handler routes incoming server events to typed channels.
type Handler struct {
	source <-chan *protocol.Envelope
	log    *slog.Logger

	UserConnected    chan protocol.PresencePayload
	UserDisconnected chan protocol.PresencePayload
	History          chan []protocol.ChatMessage
	Messages         chan protocol.ChatMessage
	Signals          chan Signal
	Errors           chan string

	closeOnce sync.Once
}

// NewHandler creates a handler reading from the client's incoming events.
func NewHandler(client *Client) *Handler {
	return newHandler(client.Incoming())
}

func newHandler(source <-chan *protocol.Envelope) *Handler {
	return &Handler{
		source:           source,
		log:              slog.Default().With("component", "handler"),
		UserConnected:    make(chan protocol.PresencePayload, 16),
		UserDisconnected: make(chan protocol.PresencePayload, 16),
		History:          make(chan []protocol.ChatMessage, 1),
		Messages:         make(chan protocol.ChatMessage, 64),
		Signals:          make(chan Signal, 32),
		Errors:           make(chan string, 8),
	}
}

// Start routes messages until the connection ends, then closes every channel.
func (h *Handler) Start() {
	defer h.Close()

	for msg := range h.source {
		switch msg.Type {

		case protocol.EventUserConnected:
			var p protocol.PresencePayload
			if h.decode(msg, &p) {
				deliver(h, h.UserConnected, p, msg.Type)
			}

		case protocol.EventUserDisconnected:
			var p protocol.PresencePayload
			if h.decode(msg, &p) {
				deliver(h, h.UserDisconnected, p, msg.Type)
			}

		case protocol.EventExistingMessages:
			var history []protocol.ChatMessage
			if h.decode(msg, &history) {
				deliver(h, h.History, history, msg.Type)
			}

		case protocol.EventReceiveMessage:
			var m protocol.ChatMessage
			if h.decode(msg, &m) {
				deliver(h, h.Messages, m, msg.Type)
			}

		case protocol.EventOffer, protocol.EventAnswer, protocol.EventICECandidate:
			var p protocol.SignalPayload
			if h.decode(msg, &p) {
				deliver(h, h.Signals, Signal{
					Kind:     msg.Type,
					SenderID: p.SenderID,
					Body:     p.Body(msg.Type),
				}, msg.Type)
			}

		case protocol.EventError:
			var p protocol.ErrorPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Message == "" {
				p.Message = "Unknown error from server"
			}
			deliver(h, h.Errors, p.Message, msg.Type)

		default:
			h.log.Debug("ignoring event", "type", msg.Type)
		}
	}
}

func (h *Handler) decode(msg *protocol.Envelope, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		h.log.Warn("failed to parse payload", "type", msg.Type, "error", err)
		deliver(h, h.Errors, "Failed to parse "+msg.Type+" payload", protocol.EventError)
		return false
	}
	return true
}

// deliver never blocks the read loop; a full channel drops the event.
func deliver[T any](h *Handler, ch chan T, v T, event string) {
	select {
	case ch <- v:
	default:
		h.log.Warn("dropping event, consumer is behind", "type", event)
	}
}

// Close closes all handler channels.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.UserConnected)
		close(h.UserDisconnected)
		close(h.History)
		close(h.Messages)
		close(h.Signals)
		close(h.Errors)
	})
}
