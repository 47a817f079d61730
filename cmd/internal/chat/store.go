package chat

import (
	"context"
	"time"
)

// Store persists messages and conversation summaries.
//
// Requirements:
//   - AppendMessage is atomic at single-message granularity and assigns the id.
//   - DirectionalHistory returns one direction ordered by (timestamp, id) ASC.
//   - UpsertSummary has merge semantics: fields not written are preserved.
//   - The two orientation upserts for a pair are NOT atomic as a unit; callers
//     tolerate (and log) a transient window where only one side is updated.
type Store interface {
	// AppendMessage durably stores a new message and returns it with the
	// store-assigned id filled in.
	AppendMessage(ctx context.Context, msg Message) (Message, error)

	// DirectionalHistory returns all messages sent by senderID to receiverID,
	// ordered by timestamp ascending (id ascending on ties).
	DirectionalHistory(ctx context.Context, senderID, receiverID string) ([]Message, error)

	// MarkRead flips read=true on the given message ids. Partial success on
	// crash is acceptable; read state converges on the next fetch.
	MarkRead(ctx context.Context, ids []string) error

	// CountUnread returns the live count of unread messages from senderID to receiverID.
	CountUnread(ctx context.Context, senderID, receiverID string) (int, error)

	// UpsertSummary writes one orientation record for (self, other) with
	// merge semantics, creating it on first contact.
	UpsertSummary(ctx context.Context, self, other, lastMessage string, lastMessageTime, updatedAt time.Time) error

	// SummariesFor returns all orientation records with participantSelf=self,
	// in no particular order; callers sort by recency.
	SummariesFor(ctx context.Context, self string) ([]Summary, error)

	Close() error
}
