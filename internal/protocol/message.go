// Package protocol defines the wire format shared by the signaling server
// and the codeshot client.
package protocol

import (
	"encoding/json"
	"time"
)

// Envelope is the JSON frame exchanged over the websocket in both directions.
//
// Requests that expect a reply set Ack to a non-zero id; the reply comes back
// as an EventAck envelope carrying the same id.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ack     uint64          `json:"ack,omitempty"`
}

// Events accepted from clients.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventGetParticipants = "get-participants"
	EventSendMessage     = "send-message"
	EventOffer           = "offer"
	EventAnswer          = "answer"
	EventICECandidate    = "ice-candidate"
	EventPing            = "ping"
)

// Events emitted by the server.
const (
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventExistingMessages = "existing-messages"
	EventReceiveMessage   = "receive-message"
	EventError            = "error"
	EventAck              = "ack"
)

// JoinRoomPayload is sent with join-room. UserRole is the legacy spelling of Role.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Role     string `json:"role,omitempty"`
	UserRole string `json:"userRole,omitempty"`
}

// EffectiveRole returns Role, falling back to UserRole.
func (p JoinRoomPayload) EffectiveRole() string {
	if p.Role != "" {
		return p.Role
	}
	return p.UserRole
}

// SendMessagePayload is the object form of send-message.
type SendMessagePayload struct {
	Text string `json:"text"`
}

// PresencePayload is carried by user-connected and user-disconnected.
type PresencePayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// ChatMessage is a single entry of a room's chat history.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Participant is one roster entry returned by get-participants.
type Participant struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ParticipantsResponse is the reply to get-participants.
type ParticipantsResponse struct {
	Success      bool          `json:"success"`
	Participants []Participant `json:"participants"`
	Error        string        `json:"error,omitempty"`
}

// LeaveRoomResponse is the reply to leave-room.
type LeaveRoomResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SignalPayload carries an offer, answer or ICE candidate. Clients fill in
// TargetUserID; the server strips it and fills in SenderID when forwarding.
// The SDP and candidate bodies are opaque to the server.
type SignalPayload struct {
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	SenderID     string          `json:"senderId,omitempty"`
}

// Body returns the opaque body matching the given signaling event.
func (p SignalPayload) Body(event string) json.RawMessage {
	switch event {
	case EventOffer:
		return p.Offer
	case EventAnswer:
		return p.Answer
	case EventICECandidate:
		return p.Candidate
	}
	return nil
}

// NewSignalPayload builds a payload holding body under the field for event.
func NewSignalPayload(event string, body json.RawMessage) SignalPayload {
	var p SignalPayload
	switch event {
	case EventOffer:
		p.Offer = body
	case EventAnswer:
		p.Answer = body
	case EventICECandidate:
		p.Candidate = body
	}
	return p
}

// IsSignal reports whether event is one of the point-to-point relay events.
func IsSignal(event string) bool {
	return event == EventOffer || event == EventAnswer || event == EventICECandidate
}

// ErrorPayload is carried by the error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string    `json:"status"`
	ActiveRooms       int       `json:"activeRooms"`
	TotalParticipants int       `json:"totalParticipants"`
	Uptime            float64   `json:"uptime"`
	Timestamp         time.Time `json:"timestamp"`
}
