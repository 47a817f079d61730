package realtime

import (
	"encoding/json"
	"sync"
	"time"

	v1 "pulse/shared/contracts/chat/v1"

	"pulse/cmd/internal/chat"
)

// Client represents one connected websocket session.
//
// Design notes:
// - Send is intentionally NOT closed by the server to avoid panics from concurrent pushers.
// - done is used to signal goroutines to stop.
// - Close is idempotent.
// - The user id is empty until the hello handshake resolves the bearer token.
//   It is written by the read loop and read by the heartbeat/shutdown paths,
//   so access goes through the mutex-backed accessors.
type Client struct {
	SessionID string
	Send      chan v1.Envelope

	mu     sync.Mutex
	userID string

	done      chan struct{}
	closeOnce sync.Once
}

// SetUserID records the authenticated identity resolved by the hello handshake.
func (c *Client) SetUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

// UserID returns the authenticated identity, or "" before the handshake.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		SessionID: sessionID,
		Send:      make(chan v1.Envelope, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
// It does NOT close Send to keep fanout safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// TryDeliver implements chat.Conn: it converts a core push event into a wire
// envelope and enqueues it without blocking. Returns false when dropped.
func (c *Client) TryDeliver(ev chat.PushEvent) bool {
	if c == nil {
		return false
	}

	env, ok := envelopeFor(ev)
	if !ok {
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}

func envelopeFor(ev chat.PushEvent) (v1.Envelope, bool) {
	switch ev.Kind {
	case chat.PushMessage:
		p, _ := json.Marshal(messagePayload(ev.Message))
		return newEnvelope(v1.TypeMessageReceived, p, ev.Message.Timestamp), true
	case chat.PushAccepted:
		p, _ := json.Marshal(messagePayload(ev.Message))
		return newEnvelope(v1.TypeMessageAccepted, p, ev.Message.Timestamp), true
	case chat.PushTyping:
		p, _ := json.Marshal(v1.TypingPayload{
			SenderID:   ev.Typing.SenderID,
			ReceiverID: ev.Typing.ReceiverID,
			IsTyping:   ev.Typing.IsTyping,
		})
		return newEnvelope(v1.TypeTyping, p, time.Now().UTC()), true
	default:
		return v1.Envelope{}, false
	}
}

func messagePayload(m chat.Message) v1.MessagePayload {
	return v1.MessagePayload{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		Read:       m.Read,
	}
}
