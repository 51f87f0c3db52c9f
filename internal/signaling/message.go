package signaling

import (
	"encoding/json"
	"errors"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
)

// Message is an envelope travelling between a Client and the Hub.
type Message struct {
	protocol.Envelope

	// client is the client that sent the message.
	// It's used internally by the Hub and not sent over JSON.
	client *Client
}

// malformedFrame marks a frame that could not be decoded as an envelope.
const malformedFrame = ""

var errEmptyPayload = errors.New("empty payload")

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errEmptyPayload
	}
	return json.Unmarshal(raw, v)
}

// decodeText accepts either a bare JSON string or {"text": "..."}.
func decodeText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errEmptyPayload
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var p protocol.SendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", err
	}
	return p.Text, nil
}
