// Package chat contains Pulse's direct-messaging core: message ingestion,
// conversation-summary maintenance, read state, presence, and delivery fanout.
package chat

import (
	"time"

	"pulse/cmd/internal/directory"
)

// Message is a single direct message between two users.
//
// A message is immutable once stored except for the Read flag, which transitions
// false -> true exactly once and never reverts.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// Summary is one orientation record of a conversation between two users.
//
// Every pair {A,B} is materialized twice: once keyed (A,B) and once keyed (B,A).
// Both records are rewritten on every accepted message, so a failed write on one
// side converges on the next message between the same pair.
type Summary struct {
	Self            string    `json:"participant_self"`
	Other           string    `json:"participant_other"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Conversation is a listing entry from one user's point of view.
type Conversation struct {
	OtherUserID     string             `json:"other_user_id"`
	LastMessage     string             `json:"last_message"`
	LastMessageTime time.Time          `json:"last_message_time"`
	UnreadCount     int                `json:"unread_count"`
	Profile         *directory.Profile `json:"profile"`
}

// PairKey joins two participant ids in lexicographic order.
// It identifies the unordered pair in logs and audit trails; storage keys are
// always the orientation-specific (self, other) tuples.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
