package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/client"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/signaling"
)

const waitTimeout = 2 * time.Second

type testServer struct {
	*httptest.Server
	hub     *signaling.Hub
	stopHub context.CancelFunc
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := signaling.NewHub(signaling.Options{
		SweepInterval: -1,
		StatsInterval: -1,
		Logger:        log,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewHandler(hub, Options{Logger: log}))
	ts := &testServer{Server: srv, hub: hub, stopHub: cancel}
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

type participant struct {
	*client.Client
	events *client.Handler
}

func dial(t *testing.T, ts *testServer) participant {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	c := client.New(ts.wsURL())
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)

	h := client.NewHandler(c)
	go h.Start()
	return participant{Client: c, events: h}
}

func recv[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "%s channel closed", what)
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func (p participant) join(t *testing.T, roomID, userID, role string) []protocol.ChatMessage {
	t.Helper()
	require.NoError(t, p.JoinRoom(roomID, userID, role))
	return recv(t, p.events.History, "existing-messages")
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestServer_InterviewOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	a := dial(t, ts)
	b := dial(t, ts)

	assert.Empty(t, a.join(t, "r1", "A", "interviewer"))
	assert.Empty(t, b.join(t, "r1", "B", "candidate"))

	joined := recv(t, a.events.UserConnected, "user-connected")
	assert.Equal(t, protocol.PresencePayload{UserID: "B", Role: "candidate"}, joined)

	require.NoError(t, a.SendChat("hello"))
	for _, p := range []participant{a, b} {
		msg := recv(t, p.events.Messages, "receive-message")
		assert.Equal(t, "A", msg.UserID)
		assert.Equal(t, "interviewer", msg.Role)
		assert.Equal(t, "hello", msg.Text)
		assert.NotEmpty(t, msg.ID)
	}

	offer := map[string]string{"type": "offer", "sdp": "v=0"}
	require.NoError(t, b.Signal(protocol.EventOffer, "A", offer))
	sig := recv(t, a.events.Signals, "offer")
	assert.Equal(t, protocol.EventOffer, sig.Kind)
	assert.Equal(t, "B", sig.SenderID)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(sig.Body))

	roster, err := a.GetParticipants(ctxT(t))
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "B", roster[0].UserID)
	assert.Equal(t, "candidate", roster[0].Role)

	// A late joiner sees the chat history.
	c := dial(t, ts)
	history := c.join(t, "r1", "C", "observer")
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Text)

	b.Close()
	left := recv(t, a.events.UserDisconnected, "user-disconnected")
	assert.Equal(t, "B", left.UserID)

	rtt, err := a.Ping(ctxT(t))
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestServer_RequestErrors(t *testing.T) {
	ts := newTestServer(t)
	a := dial(t, ts)

	_, err := a.GetParticipants(ctxT(t))
	assert.ErrorIs(t, err, client.ErrRequestFailed)
	assert.Contains(t, err.Error(), "Join a room first")

	require.NoError(t, a.SendChat("too early"))
	assert.Equal(t, "Join a room first", recv(t, a.events.Errors, "error"))

	a.join(t, "r1", "A", "interviewer")
	require.NoError(t, a.Signal(protocol.EventAnswer, "nobody", map[string]string{"type": "answer"}))
	assert.Equal(t, "Target user not found", recv(t, a.events.Errors, "error"))

	require.NoError(t, a.LeaveRoom(ctxT(t)))
	err = a.LeaveRoom(ctxT(t))
	assert.ErrorIs(t, err, client.ErrRequestFailed)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)
	a := dial(t, ts)
	a.join(t, "r1", "A", "interviewer")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var status protocol.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "OK", status.Status)
	assert.Equal(t, 1, status.ActiveRooms)
	assert.Equal(t, 1, status.TotalParticipants)
	assert.GreaterOrEqual(t, status.Uptime, 0.0)
	assert.WithinDuration(t, time.Now(), status.Timestamp, 5*time.Second)
}

func TestServer_HealthAfterHubStopped(t *testing.T) {
	ts := newTestServer(t)
	ts.stopHub()
	<-ts.hub.Done()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)
	a := dial(t, ts)
	a.join(t, "r1", "A", "interviewer")
	require.NoError(t, a.SendChat("hi"))
	recv(t, a.events.Messages, "receive-message")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "codeshot_chat_messages_total")
	assert.Contains(t, string(body), "codeshot_room_total")
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
