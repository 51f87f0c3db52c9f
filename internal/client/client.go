// Package client is a websocket client for the codeshot signaling server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	serverURL string

	incoming     chan *protocol.Envelope
	outgoing     chan *protocol.Envelope
	done         chan struct{}
	disconnected chan struct{}
	closeOnce    sync.Once

	mu      sync.Mutex
	nextAck uint64
	pending map[uint64]chan json.RawMessage
}

// New creates a new signaling client for serverURL (ws:// or wss://).
func New(serverURL string) *Client {
	return &Client{
		serverURL:    serverURL,
		incoming:     make(chan *protocol.Envelope, 64),
		outgoing:     make(chan *protocol.Envelope, 64),
		done:         make(chan struct{}),
		disconnected: make(chan struct{}),
		pending:      make(map[uint64]chan json.RawMessage),
	}
}

// Connect establishes the WebSocket connection to the server.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return NewError("connect", fmt.Errorf("invalid server URL: %w", err))
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dialContext

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return NewError("connect", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection. Acks are handed to
// the waiting Request; everything else goes to Incoming.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.disconnected)
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Envelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Type == protocol.EventAck {
			c.resolve(msg.Ack, msg.Payload)
			continue
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(event string, payload any) error {
	return c.send(event, payload, 0)
}

// Request sends an event carrying an ack id and waits for the matching reply.
func (c *Client) Request(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	reply := make(chan json.RawMessage, 1)

	c.mu.Lock()
	c.nextAck++
	id := c.nextAck
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(event, payload, id); err != nil {
		return nil, err
	}

	select {
	case raw := <-reply:
		return raw, nil
	case <-ctx.Done():
		return nil, NewError(event, ctx.Err())
	case <-c.disconnected:
		return nil, NewError(event, ErrDisconnected)
	}
}

func (c *Client) resolve(id uint64, payload json.RawMessage) {
	c.mu.Lock()
	reply, ok := c.pending[id]
	c.mu.Unlock()
	if ok {
		reply <- payload
	}
}

func (c *Client) send(event string, payload any, ack uint64) error {
	env := &protocol.Envelope{Type: event, Ack: ack}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return NewError(event, err)
		}
		env.Payload = raw
	}

	select {
	case <-c.done:
		return NewError(event, ErrClosed)
	default:
	}

	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return NewError(event, ErrClosed)
	case <-c.disconnected:
		return NewError(event, ErrDisconnected)
	}
}

// Incoming returns the channel of server events. It is closed when the
// connection ends.
func (c *Client) Incoming() <-chan *protocol.Envelope {
	return c.incoming
}

// Disconnected is closed once the connection is gone.
func (c *Client) Disconnected() <-chan struct{} {
	return c.disconnected
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// JoinRoom joins roomID as userID with role. The server answers with
// existing-messages on Incoming.
func (c *Client) JoinRoom(roomID, userID, role string) error {
	return c.Emit(protocol.EventJoinRoom, protocol.JoinRoomPayload{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
	})
}

// SendChat posts text to the current room.
func (c *Client) SendChat(text string) error {
	return c.Emit(protocol.EventSendMessage, protocol.SendMessagePayload{Text: text})
}

// Signal forwards an offer, answer or ICE candidate body to targetUserID.
func (c *Client) Signal(event, targetUserID string, body any) error {
	if !protocol.IsSignal(event) {
		return WrapError("signal", ErrUnexpectedEvent, event)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return NewError(event, err)
	}
	payload := protocol.NewSignalPayload(event, raw)
	payload.TargetUserID = targetUserID
	return c.Emit(event, payload)
}

// GetParticipants returns everyone else in the current room.
func (c *Client) GetParticipants(ctx context.Context) ([]protocol.Participant, error) {
	raw, err := c.Request(ctx, protocol.EventGetParticipants, nil)
	if err != nil {
		return nil, err
	}
	var resp protocol.ParticipantsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, NewError(protocol.EventGetParticipants, err)
	}
	if !resp.Success {
		return nil, WrapError(protocol.EventGetParticipants, ErrRequestFailed, resp.Error)
	}
	return resp.Participants, nil
}

// LeaveRoom leaves the current room but keeps the connection open.
func (c *Client) LeaveRoom(ctx context.Context) error {
	raw, err := c.Request(ctx, protocol.EventLeaveRoom, nil)
	if err != nil {
		return err
	}
	var resp protocol.LeaveRoomResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return NewError(protocol.EventLeaveRoom, err)
	}
	if !resp.Success {
		return WrapError(protocol.EventLeaveRoom, ErrRequestFailed, resp.Error)
	}
	return nil
}

// Ping measures the round trip of a ping request through the server.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.Request(ctx, protocol.EventPing, nil); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
