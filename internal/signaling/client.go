package signaling

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages

	// sendBufferSize bounds the outbound queue of a client. A client that
	// falls this far behind is disconnected.
	sendBufferSize = 256
)

type clientState int

const (
	// stateConnected: channel registered, no room yet.
	stateConnected clientState = iota
	// stateJoined: channel bound to a Membership.
	stateJoined
)

func (s clientState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateJoined:
		return "joined"
	}
	return "unknown"
}

// Membership binds a channel to a room under a user id and role.
type Membership struct {
	RoomID string
	UserID string
	Role   string
}

// Client is a wrapper for a single websocket connection.
type Client struct {
	ID string

	hub  *Hub
	conn *websocket.Conn

	// remote is the peer address, kept for logging.
	remote string

	// Send is a buffered channel for all outbound messages. The Hub writes
	// to it and WritePump drains it to the websocket. The Hub closes it when
	// the client is unregistered.
	Send chan *Message

	// state and membership are owned by the Hub goroutine.
	state      clientState
	membership Membership
}

// NewClient creates a client for conn. The client is not registered yet.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		Send: make(chan *Message, sendBufferSize),
	}
	if conn != nil {
		c.remote = conn.RemoteAddr().String()
	}
	return c
}

func (c *Client) attach(m Membership) {
	c.state = stateJoined
	c.membership = m
}

func (c *Client) detach() {
	c.state = stateConnected
	c.membership = Membership{}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", "client", c.ID, "error", err)
			}
			return
		}

		msg := &Message{client: c}
		if err := json.Unmarshal(data, &msg.Envelope); err != nil {
			msg.Envelope = protocol.Envelope{Type: malformedFrame}
		}

		if !c.hub.Receive(msg) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message.Envelope); err != nil {
				c.hub.log.Warn("websocket write failed", "client", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
