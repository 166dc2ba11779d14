package protocol

import (
	"encoding/json"
	"time"
)

// Server message types.
const (
	TypeSystem       = "system"
	TypeAuthSuccess  = "auth_success"
	TypeAuthError    = "auth_error"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypePong         = "pong"
	TypeError        = "error"
	TypeMatch        = "match"
	TypeEcho         = "echo"
)

// ServerMessage is a server->client frame. Only the fields relevant to Type
// are populated; the rest are omitted on the wire.
type ServerMessage struct {
	Type         string          `json:"type"`
	Timestamp    time.Time       `json:"timestamp"`
	Message      string          `json:"message,omitempty"`
	ConnectionID string          `json:"connectionId,omitempty"`
	Identity     string          `json:"identity,omitempty"`
	Channel      string          `json:"channel,omitempty"`
	Error        string          `json:"error,omitempty"`
	MatchData    *MatchData      `json:"matchData,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// MatchData is the payload of a match event.
type MatchData struct {
	MatchID         string         `json:"matchId"`
	OverallScore    int            `json:"overallScore"`
	DimensionScores map[string]int `json:"dimensionScores"`
	StrengthAreas   []string       `json:"strengthAreas"`
	WeaknessAreas   []string       `json:"weaknessAreas"`
	Reason          string         `json:"reason"`
	Campaign        CampaignRef    `json:"campaign"`
	Counterparty    CounterpartRef `json:"counterparty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// CampaignRef previews the matched campaign.
type CampaignRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Budget int64  `json:"budget"`
}

// CounterpartRef previews the matched brand.
type CounterpartRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
}

// Encode stamps the timestamp (when unset) and marshals the frame.
func (m ServerMessage) Encode(now time.Time) ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = now.UTC()
	}
	return json.Marshal(m)
}

// System is sent once when a connection opens.
func System(connID string) ServerMessage {
	return ServerMessage{Type: TypeSystem, Message: "connected", ConnectionID: connID}
}

// AuthSuccess acknowledges a bound identity.
func AuthSuccess(identity string) ServerMessage {
	return ServerMessage{Type: TypeAuthSuccess, Identity: identity}
}

// AuthError reports a rejected token.
func AuthError(reason string) ServerMessage {
	return ServerMessage{Type: TypeAuthError, Error: reason}
}

// Subscribed acknowledges a channel join.
func Subscribed(channel string) ServerMessage {
	return ServerMessage{Type: TypeSubscribed, Channel: channel}
}

// Unsubscribed acknowledges a channel leave.
func Unsubscribed(channel string) ServerMessage {
	return ServerMessage{Type: TypeUnsubscribed, Channel: channel}
}

// Pong answers a ping.
func Pong() ServerMessage {
	return ServerMessage{Type: TypePong}
}

// Error reports a non-fatal processing error.
func Error(reason string) ServerMessage {
	return ServerMessage{Type: TypeError, Error: reason}
}

// Match notifies a subject of a new match.
func Match(message string, data MatchData) ServerMessage {
	return ServerMessage{Type: TypeMatch, Message: message, MatchData: &data}
}

// EchoOf returns an unrecognized frame to its sender.
func EchoOf(raw json.RawMessage) ServerMessage {
	return ServerMessage{Type: TypeEcho, Data: raw}
}
