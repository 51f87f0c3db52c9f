package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/call"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/client"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/config"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/ui"
)

const connectTimeout = 30 * time.Second

var (
	flagTarget   string
	flagPings    int
	flagInterval time.Duration
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Open a WebRTC data channel to a participant and measure latency",
	Long: `Negotiate a peer-to-peer WebRTC connection with another participant through the
signaling relay, then send pings over a data channel.

Examples:
  codeshot call --room greedy-golang-merge-trie --user alice --target bob
  codeshot call --room greedy-golang-merge-trie --target bob --pings 20 --turn turn:relay.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagTarget == "" {
			return errors.New("--target is required")
		}
		sess, err := joinForCall(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		ctx, cancel := context.WithCancelCause(cmd.Context())
		defer cancel(nil)

		s, err := call.Dial(callOptions(sess), sess.Client, flagTarget)
		if err != nil {
			return err
		}
		defer s.Close()
		go relaySignals(ctx, cancel, sess, s)

		if err := waitReady(ctx, s, "Calling "+flagTarget+"..."); err != nil {
			return err
		}
		ui.PrintSuccessf("Connected to %s", flagTarget)

		var total time.Duration
		for i := 1; i <= flagPings; i++ {
			rtt, err := s.Ping(ctx)
			if err != nil {
				return err
			}
			total += rtt
			fmt.Printf("%s ping %d: %s\n", ui.IconTime, i, rtt.Round(time.Microsecond))

			select {
			case <-time.After(flagInterval):
			case <-ctx.Done():
				return context.Cause(ctx)
			}
		}
		if flagPings > 0 {
			ui.PrintInfof("average round trip %s over %d pings", (total / time.Duration(flagPings)).Round(time.Microsecond), flagPings)
		}
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Wait for a call from another participant and answer its pings",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := joinForCall(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		ctx, cancel := context.WithCancelCause(cmd.Context())
		defer cancel(nil)

		s, err := call.Accept(callOptions(sess), sess.Client)
		if err != nil {
			return err
		}
		defer s.Close()
		go relaySignals(ctx, cancel, sess, s)

		sp := ui.NewWaitingSpinner(fmt.Sprintf("Waiting for a call in %s...", sess.RoomID))
		sp.Start()
		err = s.Ready(ctx)
		sp.Stop()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		ui.PrintSuccessf("Connected to %s, press Ctrl+C to hang up", s.Peer())

		select {
		case <-s.Done():
			ui.PrintWarning("call ended by peer")
		case <-ctx.Done():
		}
		ui.PrintInfof("answered %d pings", s.Served())
		return nil
	},
}

func callOptions(sess *roomSession) call.Options {
	return call.Options{
		ICE:        sess.Config,
		Logger:     slog.Default(),
		ForceRelay: flagRelay,
		AutoRelay:  true,
	}
}

func joinForCall(ctx context.Context) (*roomSession, error) {
	roomID, err := requireRoom()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(config.ClientOptions{
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
	if err != nil {
		return nil, err
	}
	return joinRoom(ctx, cfg, roomID)
}

// relaySignals feeds relayed offers, answers and candidates into the call and
// cancels it when the server reports an error or the connection drops.
func relaySignals(ctx context.Context, cancel context.CancelCauseFunc, sess *roomSession, s *call.Session) {
	h := sess.Handler
	for {
		select {
		case sig, ok := <-h.Signals:
			if !ok {
				cancel(client.ErrDisconnected)
				return
			}
			if err := s.HandleSignal(sig.Kind, sig.SenderID, sig.Body); err != nil {
				slog.Warn("ignoring signal", "kind", sig.Kind, "from", sig.SenderID, "error", err)
			}
		case msg, ok := <-h.Errors:
			if !ok {
				cancel(client.ErrDisconnected)
				return
			}
			cancel(client.WrapError("signal", client.ErrRequestFailed, msg))
			return
		case <-ctx.Done():
			return
		}
	}
}

func waitReady(ctx context.Context, s *call.Session, message string) error {
	sp := ui.NewConnectionSpinner(message)
	sp.Start()
	defer sp.Stop()

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := s.Ready(ctx); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.DeadlineExceeded) {
			return cause
		}
		return err
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{callCmd, answerCmd} {
		c.Flags().StringVar(&flagSTUN, "stun", "", "Custom STUN server")
		c.Flags().StringVar(&flagTURN, "turn", "", "Custom TURN server")
		c.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
		c.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
		c.Flags().BoolVar(&flagRelay, "relay", false, "Force relay mode through TURN")
		rootCmd.AddCommand(c)
	}
	callCmd.Flags().StringVarP(&flagTarget, "target", "t", "", "User id to call")
	callCmd.Flags().IntVarP(&flagPings, "pings", "n", 5, "Number of pings to send")
	callCmd.Flags().DurationVar(&flagInterval, "interval", time.Second, "Delay between pings")
}
