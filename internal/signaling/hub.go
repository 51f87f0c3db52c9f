package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/telemetry"
)

// ErrHubStopped is returned by calls made after Run has returned.
var ErrHubStopped = errors.New("signaling hub stopped")

// Defaults applied by NewHub to zero-valued Options.
const (
	DefaultEmptyRoomGrace = 30 * time.Second
	DefaultSweepInterval  = 10 * time.Minute
	DefaultStaleAfter     = time.Hour
	DefaultStatsInterval  = 5 * time.Minute
)

// Options configures a Hub. Negative intervals disable the matching ticker.
type Options struct {
	HistoryLimit   int
	EmptyRoomGrace time.Duration
	SweepInterval  time.Duration
	StaleAfter     time.Duration
	StatsInterval  time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.EmptyRoomGrace == 0 {
		o.EmptyRoomGrace = DefaultEmptyRoomGrace
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.StaleAfter == 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.StatsInterval == 0 {
		o.StatsInterval = DefaultStatsInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type eventHandler struct {
	handle func(c *Client, m *Message)

	// requiresJoin rejects the event with an error until the client joined.
	requiresJoin bool
}

// Hub is the central brain of the signaling server.
// It owns the room registry and every client's state, and mutates them only
// from the goroutine running Run.
type Hub struct {
	opts      Options
	log       *slog.Logger
	registry  *Registry
	clients   map[*Client]struct{}
	handlers  map[string]eventHandler
	startedAt time.Time

	register   chan *Client
	unregister chan *Client
	inbound    chan *Message
	expire     chan string
	snapshots  chan chan protocol.HealthStatus
	done       chan struct{}

	// evictions collects clients whose send buffer overflowed while a
	// handler was running. They are disconnected once it returns.
	evictions []*Client
}

// NewHub creates a new Hub instance.
func NewHub(opts Options) *Hub {
	opts = opts.withDefaults()
	h := &Hub{
		opts:       opts,
		log:        opts.Logger,
		registry:   NewRegistry(opts.HistoryLimit),
		clients:    make(map[*Client]struct{}),
		startedAt:  time.Now(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *Message),
		expire:     make(chan string),
		snapshots:  make(chan chan protocol.HealthStatus),
		done:       make(chan struct{}),
	}
	h.handlers = map[string]eventHandler{
		protocol.EventJoinRoom:        {handle: h.handleJoin},
		protocol.EventLeaveRoom:       {handle: h.handleLeave},
		protocol.EventGetParticipants: {handle: h.handleGetParticipants},
		protocol.EventPing:            {handle: h.handlePing},
		protocol.EventSendMessage:     {handle: h.handleSendMessage, requiresJoin: true},
		protocol.EventOffer:           {handle: h.handleSignal, requiresJoin: true},
		protocol.EventAnswer:          {handle: h.handleSignal, requiresJoin: true},
		protocol.EventICECandidate:    {handle: h.handleSignal, requiresJoin: true},
	}
	return h
}

// Register hands a new client to the hub. It returns false if the hub has
// stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister tells the hub the client's connection is gone. Calling it more
// than once is harmless.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Receive queues an inbound message for processing. It returns false if the
// hub has stopped.
func (h *Hub) Receive(m *Message) bool {
	select {
	case h.inbound <- m:
		return true
	case <-h.done:
		return false
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run starts the hub's main processing loop and blocks until ctx is done.
// This is the single goroutine that safely manages all state (rooms, clients).
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	var sweepC, statsC <-chan time.Time
	if h.opts.SweepInterval > 0 {
		t := time.NewTicker(h.opts.SweepInterval)
		defer t.Stop()
		sweepC = t.C
	}
	if h.opts.StatsInterval > 0 {
		t := time.NewTicker(h.opts.StatsInterval)
		defer t.Stop()
		statsC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.connect(c)

		case c := <-h.unregister:
			h.disconnect(c, "connection closed")

		case m := <-h.inbound:
			h.dispatch(m)

		case roomID := <-h.expire:
			h.reapEmpty(roomID)

		case <-sweepC:
			h.sweep()

		case <-statsC:
			h.logStats()

		case reply := <-h.snapshots:
			reply <- h.snapshot()
		}

		h.flushEvictions()
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.Send)
		telemetry.ClientDisconnected()
	}
	h.log.Info("signaling hub stopped",
		"rooms", h.registry.Len(),
		"participants", h.registry.Participants(),
	)
}

func (h *Hub) connect(c *Client) {
	h.clients[c] = struct{}{}
	c.detach()
	telemetry.ClientConnected()
	h.log.Debug("client registered", "client", c.ID, "remote", c.remote)
}

// disconnect removes c from its room and closes its send queue. It runs at
// most once per client.
func (h *Hub) disconnect(c *Client, reason string) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	userID := c.membership.UserID
	h.leave(c)
	close(c.Send)
	telemetry.ClientDisconnected()

	h.log.Info("client disconnected", "client", c.ID, "user", userID, "reason", reason)
}

func (h *Hub) dispatch(m *Message) {
	c := m.client
	if _, ok := h.clients[c]; !ok {
		// Late message from a client that was already dropped.
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("event handler panicked", "event", m.Type, "client", c.ID, "panic", r)
			h.sendError(c, fmt.Sprintf("Failed to handle %s", m.Type))
		}
	}()

	if m.Type == malformedFrame {
		h.sendError(c, "Malformed message")
		return
	}

	handler, ok := h.handlers[m.Type]
	telemetry.ClientEvent(m.Type, ok)
	if !ok {
		h.log.Debug("unknown message type", "event", m.Type, "client", c.ID)
		h.sendError(c, fmt.Sprintf("Unknown event: %s", m.Type))
		return
	}

	if handler.requiresJoin && c.state != stateJoined {
		h.sendError(c, "Join a room first")
		return
	}

	handler.handle(c, m)
}

func (h *Hub) handlePing(c *Client, m *Message) {
	h.reply(c, m, "pong")
}

// currentRoom returns the room c is joined to, or nil if c is not joined,
// the room was reaped, or another channel took over c's user id.
func (h *Hub) currentRoom(c *Client) *Room {
	if c.state != stateJoined {
		return nil
	}
	room, ok := h.registry.Room(c.membership.RoomID)
	if !ok {
		return nil
	}
	if p, ok := room.Participant(c.membership.UserID); !ok || p.client != c {
		return nil
	}
	return room
}

// send queues an event for c. A full queue marks c for eviction.
func (h *Hub) send(c *Client, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to encode payload", "event", event, "error", err)
		return
	}
	h.push(c, &Message{Envelope: protocol.Envelope{Type: event, Payload: raw}})
}

// broadcast queues an event for every participant of room except skip.
func (h *Hub) broadcast(room *Room, event string, payload any, skip *Client) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to encode payload", "event", event, "error", err)
		return
	}
	for _, c := range room.clients(skip) {
		h.push(c, &Message{Envelope: protocol.Envelope{Type: event, Payload: raw}})
	}
}

// reply answers a request. Requests with an ack id get an ack envelope;
// others get the reply under the request's own event name.
func (h *Hub) reply(c *Client, req *Message, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to encode reply", "event", req.Type, "error", err)
		return
	}
	env := protocol.Envelope{Type: req.Type, Payload: raw}
	if req.Ack != 0 {
		env.Type = protocol.EventAck
		env.Ack = req.Ack
	}
	h.push(c, &Message{Envelope: env})
}

func (h *Hub) sendError(c *Client, message string) {
	h.send(c, protocol.EventError, protocol.ErrorPayload{Message: message})
}

func (h *Hub) push(c *Client, m *Message) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.Send <- m:
	default:
		h.log.Warn("send buffer full, dropping client", "client", c.ID, "event", m.Type)
		h.evictions = append(h.evictions, c)
	}
}

func (h *Hub) flushEvictions() {
	for len(h.evictions) > 0 {
		c := h.evictions[0]
		h.evictions = h.evictions[1:]
		h.disconnect(c, "send buffer full")
	}
}
