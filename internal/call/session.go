// Package call runs a WebRTC peer connection negotiated through the
// signaling relay and measures round-trip time over a data channel.
package call

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

const dataChannelLabel = "codeshot"

// Signaler relays offers, answers and ICE candidates to another participant.
type Signaler interface {
	Signal(event, targetUserID string, body any) error
}

// ICEConfig supplies STUN and TURN servers.
type ICEConfig interface {
	GetSTUNServers() []string
	GetTURNServers() []string
	GetTURNCredentials() (string, string)
}

// Options configures a Session.
type Options struct {
	ICE    ICEConfig
	Logger *slog.Logger

	// ForceRelay restricts ICE to TURN candidates. AutoRelay does the same
	// when the host looks like it is behind a VPN or CGNAT.
	ForceRelay bool
	AutoRelay  bool

	settings *pion.SettingEngine
}

// Session is one peer connection with a single remote participant.
type Session struct {
	pc       *pion.PeerConnection
	signaler Signaler
	offerer  bool
	log      *slog.Logger

	peerMu sync.RWMutex
	peerID string

	mu        sync.Mutex
	remoteSet bool
	pending   []pion.ICECandidateInit

	open      chan struct{}
	openOnce  sync.Once
	failed    chan struct{}
	failOnce  sync.Once
	closeOnce sync.Once

	dcMu sync.Mutex
	dc   *pion.DataChannel

	seq     atomic.Uint32
	waiters sync.Map // seq -> chan time.Duration
	served  atomic.Int64
}

// NewPeerConnection builds a pion peer connection using the configured ICE servers.
func NewPeerConnection(opts Options) (*pion.PeerConnection, error) {
	var iceServers []pion.ICEServer
	var turn []string
	if opts.ICE != nil {
		if stun := opts.ICE.GetSTUNServers(); len(stun) > 0 {
			iceServers = append(iceServers, pion.ICEServer{URLs: stun})
		}
		if turn = opts.ICE.GetTURNServers(); turn != nil {
			username, password := opts.ICE.GetTURNCredentials()
			iceServers = append(iceServers, pion.ICEServer{
				URLs:       turn,
				Username:   username,
				Credential: password,
			})
		}
	}

	policy := pion.ICETransportPolicyAll
	switch {
	case opts.ForceRelay && turn == nil:
		return nil, NewError("create peer connection", ErrNoRelay)
	case opts.ForceRelay, opts.AutoRelay && turn != nil && ShouldForceRelay():
		policy = pion.ICETransportPolicyRelay
	}

	api := pion.NewAPI()
	if opts.settings != nil {
		api = pion.NewAPI(pion.WithSettingEngine(*opts.settings))
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

func newSession(opts Options, signaler Signaler, offerer bool) (*Session, error) {
	pc, err := NewPeerConnection(opts)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		pc:       pc,
		signaler: signaler,
		offerer:  offerer,
		log:      log.With("component", "call"),
		open:     make(chan struct{}),
		failed:   make(chan struct{}),
	}
	s.setupICEHandlers()
	return s, nil
}

// Dial creates the offering side of a call to targetUserID and sends the offer.
func Dial(opts Options, signaler Signaler, targetUserID string) (*Session, error) {
	s, err := newSession(opts, signaler, true)
	if err != nil {
		return nil, err
	}
	s.peerID = targetUserID

	ordered := true
	dc, err := s.pc.CreateDataChannel(dataChannelLabel, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		s.Close()
		return nil, NewError("create data channel", err)
	}
	s.bindChannel(dc)

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		s.Close()
		return nil, NewError("create offer", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.Close()
		return nil, NewError("set local description", err)
	}

	if err := signaler.Signal(protocol.EventOffer, targetUserID, s.pc.LocalDescription()); err != nil {
		s.Close()
		return nil, NewError("send offer", err)
	}
	return s, nil
}

// Accept creates the answering side. The first offer received decides the peer.
func Accept(opts Options, signaler Signaler) (*Session, error) {
	s, err := newSession(opts, signaler, false)
	if err != nil {
		return nil, err
	}
	s.pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() == dataChannelLabel {
			s.bindChannel(dc)
		}
	})
	return s, nil
}

func (s *Session) setupICEHandlers() {
	s.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		s.log.Debug("connection state changed", "state", state.String())
		if state == pion.PeerConnectionStateFailed || state == pion.PeerConnectionStateClosed {
			s.failOnce.Do(func() { close(s.failed) })
		}
	})

	s.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		peer := s.Peer()
		if peer == "" {
			return
		}
		if err := s.signaler.Signal(protocol.EventICECandidate, peer, c.ToJSON()); err != nil {
			s.log.Warn("failed to send ICE candidate", "peer", peer, "error", err)
		}
	})
}

// HandleSignal applies a relayed offer, answer or ICE candidate.
func (s *Session) HandleSignal(kind, senderID string, body json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.peerMu.Lock()
	if s.peerID == "" && !s.offerer && kind == protocol.EventOffer {
		s.peerID = senderID
	}
	peer := s.peerID
	s.peerMu.Unlock()

	if peer == "" && kind == protocol.EventICECandidate {
		var ice pion.ICECandidateInit
		if err := json.Unmarshal(body, &ice); err != nil {
			return NewError("parse ICE candidate", err)
		}
		s.pending = append(s.pending, ice)
		return nil
	}
	if senderID != peer {
		return WrapError(kind, ErrUnexpectedPeer, senderID)
	}

	switch kind {
	case protocol.EventOffer:
		if s.offerer {
			return WrapError(kind, ErrUnexpectedEvent, "offerer received an offer")
		}
		var offer pion.SessionDescription
		if err := json.Unmarshal(body, &offer); err != nil {
			return NewError("parse offer", err)
		}
		if err := s.setRemote(offer); err != nil {
			return err
		}
		answer, err := s.pc.CreateAnswer(nil)
		if err != nil {
			return NewError("create answer", err)
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			return NewError("set local description", err)
		}
		if err := s.signaler.Signal(protocol.EventAnswer, peer, s.pc.LocalDescription()); err != nil {
			return NewError("send answer", err)
		}
		return nil

	case protocol.EventAnswer:
		if !s.offerer {
			return WrapError(kind, ErrUnexpectedEvent, "answerer received an answer")
		}
		var answer pion.SessionDescription
		if err := json.Unmarshal(body, &answer); err != nil {
			return NewError("parse answer", err)
		}
		return s.setRemote(answer)

	case protocol.EventICECandidate:
		var ice pion.ICECandidateInit
		if err := json.Unmarshal(body, &ice); err != nil {
			return NewError("parse ICE candidate", err)
		}
		if !s.remoteSet {
			s.pending = append(s.pending, ice)
			return nil
		}
		if err := s.pc.AddICECandidate(ice); err != nil {
			return NewError("add ICE candidate", err)
		}
		return nil
	}

	return WrapError("handle signal", ErrUnexpectedEvent, kind)
}

// setRemote sets the remote description and flushes candidates that arrived
// before it. Caller holds s.mu.
func (s *Session) setRemote(desc pion.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}
	s.remoteSet = true

	for _, ice := range s.pending {
		if err := s.pc.AddICECandidate(ice); err != nil {
			s.log.Warn("failed to add buffered ICE candidate", "error", err)
		}
	}
	s.pending = nil
	return nil
}

func (s *Session) bindChannel(dc *pion.DataChannel) {
	s.dcMu.Lock()
	s.dc = dc
	s.dcMu.Unlock()

	dc.OnOpen(func() {
		s.openOnce.Do(func() { close(s.open) })
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		s.handleMessage(dc, msg.Data)
	})
}

func (s *Session) handleMessage(dc *pion.DataChannel, data []byte) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		s.log.Warn("failed to decode data channel message", "error", err)
		return
	}

	var ping PingPayload
	if err := msg.DecodePayload(&ping); err != nil {
		s.log.Warn("failed to decode payload", "type", msg.Type, "error", err)
		return
	}

	switch msg.Type {
	case MessageTypePing:
		out, err := encode(MessageTypePong, ping)
		if err != nil {
			return
		}
		if err := dc.Send(out); err != nil {
			s.log.Warn("failed to send pong", "error", err)
			return
		}
		s.served.Add(1)

	case MessageTypePong:
		if w, ok := s.waiters.LoadAndDelete(ping.Seq); ok {
			w.(chan time.Duration) <- time.Since(time.Unix(0, ping.SentAt))
		}
	}
}

// Ready blocks until the data channel is open.
func (s *Session) Ready(ctx context.Context) error {
	select {
	case <-s.open:
		return nil
	case <-s.failed:
		return NewError("connect", ErrConnection)
	case <-ctx.Done():
		return NewError("connect", ctx.Err())
	}
}

// Ping sends a ping over the data channel and returns the round-trip time.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	if err := s.Ready(ctx); err != nil {
		return 0, err
	}

	seq := s.seq.Add(1)
	reply := make(chan time.Duration, 1)
	s.waiters.Store(seq, reply)
	defer s.waiters.Delete(seq)

	out, err := encode(MessageTypePing, PingPayload{Seq: seq, SentAt: time.Now().UnixNano()})
	if err != nil {
		return 0, NewError("encode ping", err)
	}

	s.dcMu.Lock()
	dc := s.dc
	s.dcMu.Unlock()
	if err := dc.Send(out); err != nil {
		return 0, NewError("send ping", err)
	}

	select {
	case rtt := <-reply:
		return rtt, nil
	case <-s.failed:
		return 0, NewError("ping", ErrConnection)
	case <-ctx.Done():
		return 0, NewError("ping", ctx.Err())
	}
}

// Peer is the remote participant, empty until an answerer sees its first offer.
func (s *Session) Peer() string {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	return s.peerID
}

// Served is the number of pings this side has answered.
func (s *Session) Served() int64 {
	return s.served.Load()
}

// Done is closed when the peer connection fails or closes.
func (s *Session) Done() <-chan struct{} {
	return s.failed
}

// Close tears down the peer connection.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.pc.Close()
		s.failOnce.Do(func() { close(s.failed) })
	})
	return err
}
