package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

const eventTimeout = time.Second

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = -1
	}
	if opts.StatsInterval == 0 {
		opts.StatsInterval = -1
	}

	h := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h
}

func connectClient(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := NewClient(h, nil)
	require.True(t, h.Register(c))
	return c
}

func emit(t *testing.T, h *Hub, c *Client, event string, payload any) {
	t.Helper()
	emitAck(t, h, c, event, payload, 0)
}

func emitAck(t *testing.T, h *Hub, c *Client, event string, payload any, ack uint64) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	msg := &Message{Envelope: protocol.Envelope{Type: event, Payload: raw, Ack: ack}, client: c}
	require.True(t, h.Receive(msg))
}

func expectEvent(t *testing.T, c *Client, event string) *Message {
	t.Helper()
	select {
	case m, ok := <-c.Send:
		require.True(t, ok, "send queue closed while waiting for %s", event)
		require.Equal(t, event, m.Type, "payload: %s", string(m.Payload))
		return m
	case <-time.After(eventTimeout):
		t.Fatalf("timed out waiting for %s", event)
	}
	return nil
}

func expectClosed(t *testing.T, c *Client) {
	t.Helper()
	select {
	case m, ok := <-c.Send:
		require.False(t, ok, "expected closed queue, got %v", m)
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for send queue to close")
	}
}

// barrier round-trips a ping through the hub. Everything the hub queued for
// c before the ping is processed must be consumed first, so a direct ack
// proves c received nothing else.
func barrier(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	emitAck(t, h, c, protocol.EventPing, nil, 9999)
	m := expectEvent(t, c, protocol.EventAck)
	assert.Equal(t, uint64(9999), m.Ack)
}

func decodeAs[T any](t *testing.T, m *Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(m.Payload, &v))
	return v
}

func join(t *testing.T, h *Hub, c *Client, roomID, userID, role string) []protocol.ChatMessage {
	t.Helper()
	emit(t, h, c, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomID: roomID, UserID: userID, Role: role})
	return decodeAs[[]protocol.ChatMessage](t, expectEvent(t, c, protocol.EventExistingMessages))
}

func getParticipants(t *testing.T, h *Hub, c *Client) protocol.ParticipantsResponse {
	t.Helper()
	emitAck(t, h, c, protocol.EventGetParticipants, nil, 1)
	return decodeAs[protocol.ParticipantsResponse](t, expectEvent(t, c, protocol.EventAck))
}

func snapshot(t *testing.T, h *Hub) protocol.HealthStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	s, err := h.Snapshot(ctx)
	require.NoError(t, err)
	return s
}

func TestHub_InterviewScenario(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)
	b := connectClient(t, h)

	history := join(t, h, a, "r1", "A", "interviewer")
	assert.Empty(t, history)

	join(t, h, b, "r1", "B", "candidate")
	connected := decodeAs[protocol.PresencePayload](t, expectEvent(t, a, protocol.EventUserConnected))
	assert.Equal(t, protocol.PresencePayload{UserID: "B", Role: "candidate"}, connected)

	emit(t, h, a, protocol.EventSendMessage, protocol.SendMessagePayload{Text: "hello"})
	for _, c := range []*Client{a, b} {
		msg := decodeAs[protocol.ChatMessage](t, expectEvent(t, c, protocol.EventReceiveMessage))
		assert.Equal(t, "A", msg.UserID)
		assert.Equal(t, "interviewer", msg.Role)
		assert.Equal(t, "hello", msg.Text)
		assert.NotEmpty(t, msg.ID)
	}

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	emit(t, h, a, protocol.EventOffer, protocol.SignalPayload{Offer: offer, TargetUserID: "B"})
	got := decodeAs[protocol.SignalPayload](t, expectEvent(t, b, protocol.EventOffer))
	assert.Equal(t, "A", got.SenderID)
	assert.JSONEq(t, string(offer), string(got.Offer))
	assert.Empty(t, got.TargetUserID)
	barrier(t, h, a)

	h.Unregister(b)
	expectClosed(t, b)
	left := decodeAs[protocol.PresencePayload](t, expectEvent(t, a, protocol.EventUserDisconnected))
	assert.Equal(t, "B", left.UserID)

	roster := getParticipants(t, h, a)
	assert.True(t, roster.Success)
	assert.Empty(t, roster.Participants)
}

func TestHub_SignalReachesOnlyTarget(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)
	b := connectClient(t, h)
	c := connectClient(t, h)

	join(t, h, a, "r1", "A", "interviewer")
	join(t, h, b, "r1", "B", "candidate")
	expectEvent(t, a, protocol.EventUserConnected)
	join(t, h, c, "r1", "C", "observer")
	expectEvent(t, a, protocol.EventUserConnected)
	expectEvent(t, b, protocol.EventUserConnected)

	cases := []struct {
		event   string
		payload protocol.SignalPayload
		body    func(protocol.SignalPayload) json.RawMessage
	}{
		{
			event:   protocol.EventOffer,
			payload: protocol.SignalPayload{Offer: json.RawMessage(`{"sdp":"o"}`), TargetUserID: "B"},
			body:    func(p protocol.SignalPayload) json.RawMessage { return p.Offer },
		},
		{
			event:   protocol.EventAnswer,
			payload: protocol.SignalPayload{Answer: json.RawMessage(`{"sdp":"a"}`), TargetUserID: "B"},
			body:    func(p protocol.SignalPayload) json.RawMessage { return p.Answer },
		},
		{
			event:   protocol.EventICECandidate,
			payload: protocol.SignalPayload{Candidate: json.RawMessage(`{"candidate":"c"}`), TargetUserID: "B"},
			body:    func(p protocol.SignalPayload) json.RawMessage { return p.Candidate },
		},
	}

	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			emit(t, h, a, tc.event, tc.payload)

			got := decodeAs[protocol.SignalPayload](t, expectEvent(t, b, tc.event))
			assert.Equal(t, "A", got.SenderID)
			assert.JSONEq(t, string(tc.body(tc.payload)), string(tc.body(got)))

			barrier(t, h, c)
			barrier(t, h, a)
		})
	}
}

func TestHub_SignalToUnknownTarget(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)
	join(t, h, a, "r1", "A", "interviewer")

	emit(t, h, a, protocol.EventICECandidate, protocol.SignalPayload{
		Candidate:    json.RawMessage(`{}`),
		TargetUserID: "ghost",
	})
	errPayload := decodeAs[protocol.ErrorPayload](t, expectEvent(t, a, protocol.EventError))
	assert.Equal(t, "Target user not found", errPayload.Message)

	// The channel survives the error.
	barrier(t, h, a)
}

func TestHub_EventsRequireJoin(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)

	for _, event := range []string{protocol.EventSendMessage, protocol.EventOffer, protocol.EventAnswer, protocol.EventICECandidate} {
		emit(t, h, a, event, map[string]string{"text": "x", "targetUserId": "B"})
		errPayload := decodeAs[protocol.ErrorPayload](t, expectEvent(t, a, protocol.EventError))
		assert.Equal(t, "Join a room first", errPayload.Message, event)
	}

	resp := getParticipants(t, h, a)
	assert.False(t, resp.Success)
	assert.Equal(t, "Join a room first", resp.Error)

	emitAck(t, h, a, protocol.EventPing, nil, 3)
	pong := expectEvent(t, a, protocol.EventAck)
	assert.Equal(t, uint64(3), pong.Ack)
	assert.Equal(t, "pong", decodeAs[string](t, pong))
}

func TestHub_JoinValidation(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)

	emit(t, h, a, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomID: "r1"})
	errPayload := decodeAs[protocol.ErrorPayload](t, expectEvent(t, a, protocol.EventError))
	assert.Equal(t, "roomId and userId are required", errPayload.Message)

	emit(t, h, a, protocol.EventJoinRoom, nil)
	expectEvent(t, a, protocol.EventError)

	assert.Equal(t, 0, snapshot(t, h).ActiveRooms)
}

func TestHub_LegacyPayloadShapes(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)
	b := connectClient(t, h)

	emit(t, h, a, protocol.EventJoinRoom, map[string]string{"roomId": "r1", "userId": "A", "userRole": "interviewer"})
	expectEvent(t, a, protocol.EventExistingMessages)
	join(t, h, b, "r1", "B", "candidate")
	expectEvent(t, a, protocol.EventUserConnected)

	roster := getParticipants(t, h, b)
	require.Len(t, roster.Participants, 1)
	assert.Equal(t, "interviewer", roster.Participants[0].Role)

	// Bare string chat payload.
	emit(t, h, b, protocol.EventSendMessage, "hi there")
	msg := decodeAs[protocol.ChatMessage](t, expectEvent(t, a, protocol.EventReceiveMessage))
	assert.Equal(t, "hi there", msg.Text)
	assert.Equal(t, "candidate", msg.Role)
}

func TestHub_RosterExcludesCallerWithLastRole(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)
	b := connectClient(t, h)
	c := connectClient(t, h)

	join(t, h, a, "r1", "A", "interviewer")
	join(t, h, b, "r1", "B", "candidate")
	expectEvent(t, a, protocol.EventUserConnected)
	join(t, h, c, "r1", "C", "observer")
	expectEvent(t, a, protocol.EventUserConnected)
	expectEvent(t, b, protocol.EventUserConnected)

	// B re-joins on the same channel with a new role.
	join(t, h, b, "r1", "B", "pair")
	expectEvent(t, a, protocol.EventUserConnected)
	expectEvent(t, c, protocol.EventUserConnected)

	roster := getParticipants(t, h, a)
	require.True(t, roster.Success)
	roles := map[string]string{}
	for _, p := range roster.Participants {
		roles[p.UserID] = p.Role
	}
	assert.Equal(t, map[string]string{"B": "pair", "C": "observer"}, roles)
}

func TestHub_RejoinFromNewChannelReplacesOld(t *testing.T) {
	h := newTestHub(t, Options{})
	oldA := connectClient(t, h)
	newA := connectClient(t, h)
	b := connectClient(t, h)

	join(t, h, oldA, "r1", "A", "interviewer")
	join(t, h, b, "r1", "B", "candidate")
	expectEvent(t, oldA, protocol.EventUserConnected)

	join(t, h, newA, "r1", "A", "interviewer")
	expectEvent(t, b, protocol.EventUserConnected)
	barrier(t, h, oldA)

	// The stale channel lost its seat silently.
	emit(t, h, oldA, protocol.EventSendMessage, "still here?")
	errPayload := decodeAs[protocol.ErrorPayload](t, expectEvent(t, oldA, protocol.EventError))
	assert.Equal(t, "Join a room first", errPayload.Message)

	// Closing it must not evict the new binding.
	h.Unregister(oldA)
	expectClosed(t, oldA)
	barrier(t, h, b)

	roster := getParticipants(t, h, b)
	require.Len(t, roster.Participants, 1)
	assert.Equal(t, "A", roster.Participants[0].UserID)
	assert.Equal(t, 2, snapshot(t, h).TotalParticipants)
}

func TestHub_DuplicateDisconnectIsIdempotent(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)
	b := connectClient(t, h)

	join(t, h, a, "r1", "A", "interviewer")
	join(t, h, b, "r1", "B", "candidate")
	expectEvent(t, a, protocol.EventUserConnected)

	h.Unregister(b)
	h.Unregister(b)
	expectClosed(t, b)

	expectEvent(t, a, protocol.EventUserDisconnected)
	barrier(t, h, a)

	s := snapshot(t, h)
	assert.Equal(t, 1, s.ActiveRooms)
	assert.Equal(t, 1, s.TotalParticipants)
}

func TestHub_HistoryReplayIsBounded(t *testing.T) {
	h := newTestHub(t, Options{HistoryLimit: 3})
	a := connectClient(t, h)
	join(t, h, a, "r1", "A", "interviewer")

	for i := 0; i < 5; i++ {
		emit(t, h, a, protocol.EventSendMessage, fmt.Sprintf("m%d", i))
		expectEvent(t, a, protocol.EventReceiveMessage)
	}

	late := connectClient(t, h)
	history := join(t, h, late, "r1", "L", "candidate")
	require.Len(t, history, 3)
	assert.Equal(t, "m2", history[0].Text)
	assert.Equal(t, "m4", history[2].Text)
}

func TestHub_EmptyRoomReapedAfterGrace(t *testing.T) {
	h := newTestHub(t, Options{EmptyRoomGrace: 20 * time.Millisecond})
	a := connectClient(t, h)
	join(t, h, a, "r1", "A", "interviewer")
	require.Equal(t, 1, snapshot(t, h).ActiveRooms)

	h.Unregister(a)
	expectClosed(t, a)

	assert.Eventually(t, func() bool {
		return snapshot(t, h).ActiveRooms == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHub_RoomRejoinedWithinGraceSurvives(t *testing.T) {
	grace := 100 * time.Millisecond
	h := newTestHub(t, Options{EmptyRoomGrace: grace})
	a := connectClient(t, h)
	join(t, h, a, "r1", "A", "interviewer")
	emit(t, h, a, protocol.EventSendMessage, "before reconnect")
	expectEvent(t, a, protocol.EventReceiveMessage)

	h.Unregister(a)
	expectClosed(t, a)

	again := connectClient(t, h)
	history := join(t, h, again, "r1", "A", "interviewer")
	require.Len(t, history, 1, "history survives a fast reconnect")

	time.Sleep(3 * grace)
	s := snapshot(t, h)
	assert.Equal(t, 1, s.ActiveRooms)
	assert.Equal(t, 1, s.TotalParticipants)
}

func TestHub_StaleRoomsSwept(t *testing.T) {
	h := newTestHub(t, Options{
		SweepInterval: 10 * time.Millisecond,
		StaleAfter:    20 * time.Millisecond,
	})
	a := connectClient(t, h)
	join(t, h, a, "r1", "A", "interviewer")

	assert.Eventually(t, func() bool {
		return snapshot(t, h).ActiveRooms == 0
	}, time.Second, 10*time.Millisecond)

	emit(t, h, a, protocol.EventSendMessage, "anyone?")
	errPayload := decodeAs[protocol.ErrorPayload](t, expectEvent(t, a, protocol.EventError))
	assert.Equal(t, "Room not found", errPayload.Message)

	resp := getParticipants(t, h, a)
	assert.False(t, resp.Success)
	assert.Equal(t, "Room not found", resp.Error)
}

func TestHub_LeaveRoomKeepsChannelOpen(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)
	b := connectClient(t, h)
	join(t, h, a, "r1", "A", "interviewer")
	join(t, h, b, "r1", "B", "candidate")
	expectEvent(t, a, protocol.EventUserConnected)

	emitAck(t, h, b, protocol.EventLeaveRoom, nil, 5)
	resp := decodeAs[protocol.LeaveRoomResponse](t, expectEvent(t, b, protocol.EventAck))
	assert.True(t, resp.Success)
	expectEvent(t, a, protocol.EventUserDisconnected)

	emit(t, h, b, protocol.EventSendMessage, "gone")
	expectEvent(t, b, protocol.EventError)

	join(t, h, b, "r2", "B", "candidate")
	assert.Equal(t, 2, snapshot(t, h).ActiveRooms)
}

func TestHub_JoiningAnotherRoomLeavesTheFirst(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)
	b := connectClient(t, h)
	join(t, h, a, "r1", "A", "interviewer")
	join(t, h, b, "r1", "B", "candidate")
	expectEvent(t, a, protocol.EventUserConnected)

	join(t, h, a, "r2", "A", "interviewer")
	left := decodeAs[protocol.PresencePayload](t, expectEvent(t, b, protocol.EventUserDisconnected))
	assert.Equal(t, "A", left.UserID)

	assert.Empty(t, getParticipants(t, h, b).Participants)
	assert.Equal(t, 2, snapshot(t, h).TotalParticipants)
}

func TestHub_MalformedAndUnknownEvents(t *testing.T) {
	h := newTestHub(t, Options{})
	a := connectClient(t, h)

	require.True(t, h.Receive(&Message{client: a}))
	errPayload := decodeAs[protocol.ErrorPayload](t, expectEvent(t, a, protocol.EventError))
	assert.Equal(t, "Malformed message", errPayload.Message)

	emit(t, h, a, "create_room", nil)
	errPayload = decodeAs[protocol.ErrorPayload](t, expectEvent(t, a, protocol.EventError))
	assert.Equal(t, "Unknown event: create_room", errPayload.Message)
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	h := newTestHub(t, Options{})
	slow := &Client{ID: "slow", hub: h, Send: make(chan *Message, 1)}
	require.True(t, h.Register(slow))
	a := connectClient(t, h)

	// Fills the single slot with existing-messages.
	emit(t, h, slow, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomID: "r1", UserID: "S", Role: "candidate"})

	join(t, h, a, "r1", "A", "interviewer")
	left := decodeAs[protocol.PresencePayload](t, expectEvent(t, a, protocol.EventUserDisconnected))
	assert.Equal(t, "S", left.UserID)

	expectEvent(t, slow, protocol.EventExistingMessages)
	expectClosed(t, slow)
}

func TestHub_SnapshotAfterStop(t *testing.T) {
	h := NewHub(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := NewClient(h, nil)
	require.True(t, h.Register(c))

	cancel()
	<-h.Done()

	_, err := h.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrHubStopped)
	assert.False(t, h.Register(NewClient(h, nil)))
	expectClosed(t, c)
}
