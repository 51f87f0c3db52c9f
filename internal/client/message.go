package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrClosed          = errors.New("client closed")
	ErrDisconnected    = errors.New("disconnected from signaling server")
	ErrRequestFailed   = errors.New("request rejected by server")
	ErrUnexpectedEvent = errors.New("unexpected event type")
)

// Error records the operation that failed.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// Signal is an offer, answer or ICE candidate relayed from another participant.
type Signal struct {
	Kind     string
	SenderID string
	Body     json.RawMessage
}
