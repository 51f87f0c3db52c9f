package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/client"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/config"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/ui"
)

const joinTimeout = 10 * time.Second

// roomSession is a connection that has joined a room.
type roomSession struct {
	Client  *client.Client
	Handler *client.Handler
	Config  *config.ClientConfig
	RoomID  string
	UserID  string
	Role    string
	History []protocol.ChatMessage
}

func loadConfig(opts config.ClientOptions) (*config.ClientConfig, error) {
	opts.Server = flagServer
	cfg, err := config.LoadClient(opts)
	if err != nil {
		return nil, client.NewError("load config", err)
	}
	return cfg, nil
}

func currentUser() string {
	if flagUser != "" {
		return flagUser
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "guest-" + uuid.NewString()[:8]
}

func requireRoom() (string, error) {
	if flagRoom == "" {
		return "", errors.New("--room is required")
	}
	return flagRoom, nil
}

// joinRoom connects, joins roomID and waits for the history replay that
// confirms the join.
func joinRoom(ctx context.Context, cfg *config.ClientConfig, roomID string) (*roomSession, error) {
	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	c := client.New(cfg.WebSocketURL)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	handler := client.NewHandler(c)
	go handler.Start()

	s := &roomSession{
		Client:  c,
		Handler: handler,
		Config:  cfg,
		RoomID:  roomID,
		UserID:  currentUser(),
		Role:    flagRole,
	}

	if err := c.JoinRoom(s.RoomID, s.UserID, s.Role); err != nil {
		c.Close()
		return nil, err
	}

	select {
	case history, ok := <-handler.History:
		if !ok {
			return nil, client.NewError("join room", client.ErrDisconnected)
		}
		s.History = history
		return s, nil
	case msg := <-handler.Errors:
		c.Close()
		return nil, client.WrapError("join room", client.ErrRequestFailed, msg)
	case <-ctx.Done():
		c.Close()
		return nil, client.NewError("join room", ctx.Err())
	}
}

func (s *roomSession) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Client.LeaveRoom(ctx)
	s.Client.Close()
}

func (s *roomSession) String() string {
	return fmt.Sprintf("%s as %s (%s)", s.RoomID, s.UserID, s.Role)
}
