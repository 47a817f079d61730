// Package v1 defines the Pulse realtime chat protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a session handshake (client -> server). Carries the bearer token.
	TypeHello = "hello"
	// TypeHelloAck acknowledges the session handshake (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeMessageSend requests sending a direct message (client -> server).
	TypeMessageSend = "message_send"
	// TypeMessageAccepted acknowledges a send back to the sender with the stored message (server -> client).
	TypeMessageAccepted = "message_accepted"
	// TypeMessageReceived delivers a newly stored message to the recipient's live connections (server -> client).
	TypeMessageReceived = "message_received"

	// TypeTyping is a passthrough typing indicator (client -> server -> recipient). Never persisted.
	TypeTyping = "typing"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeMessageSend,
		TypeMessageAccepted,
		TypeMessageReceived,
		TypeTyping,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// HelloPayload authenticates the connection. The token is validated server-side;
// the resolved user id is authoritative for the whole connection lifetime.
type HelloPayload struct {
	Token string `json:"token"`
}

// HelloAckPayload confirms the session and echoes the trusted identity.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// MessageSendPayload requests sending a direct message.
// The sender is never taken from the payload; it is the authenticated connection identity.
type MessageSendPayload struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// MessagePayload is the full stored message, used by both
// message_accepted (to the sender) and message_received (to the recipient).
type MessagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// TypingPayload routes a typing indicator to the recipient's live connections.
// SenderID is filled in by the server from the connection identity.
type TypingPayload struct {
	SenderID   string `json:"sender_id,omitempty"`
	ReceiverID string `json:"receiver_id"`
	IsTyping   bool   `json:"is_typing"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
