package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Client message types.
const (
	TypeAuthenticate = "authenticate"
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypePing         = "ping"
)

// ErrMalformed is returned when a frame is not a JSON object.
var ErrMalformed = errors.New("malformed message")

// ClientMessage is one decoded client->server frame. The concrete type is one
// of Authenticate, Subscribe, Unsubscribe, Ping or Echo.
type ClientMessage interface {
	clientMessage()
}

// Authenticate binds an identity to the connection.
type Authenticate struct {
	Token string `json:"token"`
}

// Subscribe joins a channel.
type Subscribe struct {
	Channel string `json:"channel"`
}

// Unsubscribe leaves a channel.
type Unsubscribe struct {
	Channel string `json:"channel"`
}

// Ping asks for a pong.
type Ping struct{}

// Echo carries any frame whose type is not recognized.
type Echo struct {
	Type string
	Raw  json.RawMessage
}

func (Authenticate) clientMessage() {}
func (Subscribe) clientMessage()    {}
func (Unsubscribe) clientMessage()  {}
func (Ping) clientMessage()         {}
func (Echo) clientMessage()         {}

// envelope is used to peek at the type before decoding the variant.
type envelope struct {
	Type string `json:"type"`
}

// DecodeClient parses a raw frame into its ClientMessage variant. Frames that
// are not JSON objects are malformed.
func DecodeClient(data []byte) (ClientMessage, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: frame is not a JSON object", ErrMalformed)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeAuthenticate:
		var m Authenticate
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return m, nil

	case TypeSubscribe:
		var m Subscribe
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return m, nil

	case TypeUnsubscribe:
		var m Unsubscribe
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return m, nil

	case TypePing:
		return Ping{}, nil
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Echo{Type: env.Type, Raw: raw}, nil
}

// EncodeClient renders a client frame. Echo frames are sent as their raw
// payload.
func EncodeClient(m ClientMessage) ([]byte, error) {
	switch v := m.(type) {
	case Authenticate:
		return json.Marshal(map[string]string{"type": TypeAuthenticate, "token": v.Token})
	case Subscribe:
		return json.Marshal(map[string]string{"type": TypeSubscribe, "channel": v.Channel})
	case Unsubscribe:
		return json.Marshal(map[string]string{"type": TypeUnsubscribe, "channel": v.Channel})
	case Ping:
		return []byte(`{"type":"ping"}`), nil
	case Echo:
		return v.Raw, nil
	}
	return nil, fmt.Errorf("unsupported client message %T", m)
}
