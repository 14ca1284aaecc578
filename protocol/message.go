// Package protocol defines the wire message envelope exchanged
// between Server and NetClient: a self-describing, JSON-encoded
// envelope with a string type tag, decoded once at the boundary.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the discriminant tag of a Message envelope.
type Type string

const (
	TypeConnect        Type = "CONNECT"
	TypeSetPlayerName  Type = "SET_PLAYER_NAME"
	TypeMove           Type = "MOVE"
	TypeStateUpdate    Type = "STATE_UPDATE"
	TypePlayerJoined   Type = "PLAYER_JOINED"
	TypePlayerLeft     Type = "PLAYER_LEFT"
	TypeError          Type = "ERROR"
	TypePing           Type = "PING"
	TypePong           Type = "PONG"
)

// Error codes carried in ERROR.payload.code.
const (
	ErrCodeInvalidMove  = "INVALID_MOVE"
	ErrCodeUnknownType  = "UNKNOWN_TYPE"
	ErrCodeInternal     = "INTERNAL"
)

// Message is the envelope every participant sends and receives.
// Payload is kept as raw JSON until the handler knows which shape to
// decode it into; ClientID is opaque and server-issued.
type Message struct {
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp uint64          `json:"timestamp"`
	ClientID  string          `json:"clientId,omitempty"`
}

// NowMillis returns the current wall-clock time as the monotonic
// unsigned millisecond timestamp spec.md §6 puts on every envelope.
func NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Encode marshals a typed payload into a Message envelope.
func Encode(t Type, timestamp uint64, clientID string, payload interface{}) (Message, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: encode payload: %w", err)
		}
		raw = b
	}
	return Message{Type: t, Payload: raw, Timestamp: timestamp, ClientID: clientID}, nil
}

// Decode parses raw bytes into a Message envelope and validates the
// envelope shape. It does not decode Payload — callers switch on Type
// and unmarshal Payload into the matching struct below.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("protocol: malformed envelope: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("protocol: missing type")
	}
	return msg, nil
}

// DecodePayload unmarshals msg.Payload into out.
func DecodePayload(msg Message, out interface{}) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		return fmt.Errorf("protocol: malformed payload for %s: %w", msg.Type, err)
	}
	return nil
}

// IsKnownType reports whether t is one of the core message types.
func IsKnownType(t Type) bool {
	switch t {
	case TypeConnect, TypeSetPlayerName, TypeMove, TypeStateUpdate,
		TypePlayerJoined, TypePlayerLeft, TypeError, TypePing, TypePong:
		return true
	default:
		return false
	}
}
