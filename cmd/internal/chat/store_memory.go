package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pulse/cmd/identity/ids"
)

// InMemoryStore is the fallback Store when neither Postgres nor Badger is configured.
// It keeps full fidelity with the Store contract so the core logic can be exercised
// in tests and single-process dev runs.
type InMemoryStore struct {
	mu        sync.Mutex
	msgs      map[string]*Message  // id -> message
	byPair    map[string][]string  // pair key -> ids in append order
	summaries map[string][]Summary // self -> orientation records
}

// NewInMemoryStore constructs an in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		msgs:      make(map[string]*Message),
		byPair:    make(map[string][]string),
		summaries: make(map[string][]Summary),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// AppendMessage stores the message and assigns a ULID id.
// ULIDs embed the timestamp, so id order agrees with assignment order.
func (s *InMemoryStore) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.SenderID == "" || msg.ReceiverID == "" || msg.Content == "" {
		return Message{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	id, err := ids.NewULID(msg.Timestamp)
	if err != nil {
		return Message{}, err
	}
	msg.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := msg
	s.msgs[id] = &stored

	pair := PairKey(msg.SenderID, msg.ReceiverID)
	s.byPair[pair] = append(s.byPair[pair], id)

	return msg, nil
}

// DirectionalHistory returns sender->receiver messages ordered by (timestamp, id) ASC.
func (s *InMemoryStore) DirectionalHistory(ctx context.Context, senderID, receiverID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	pair := PairKey(senderID, receiverID)
	out := make([]Message, 0, len(s.byPair[pair]))
	for _, id := range s.byPair[pair] {
		m := s.msgs[id]
		if m != nil && m.SenderID == senderID && m.ReceiverID == receiverID {
			out = append(out, *m)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// MarkRead flips read=true on the given ids. Unknown ids are ignored.
func (s *InMemoryStore) MarkRead(ctx context.Context, msgIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range msgIDs {
		if m := s.msgs[id]; m != nil {
			m.Read = true
		}
	}
	return nil
}

// CountUnread counts sender->receiver messages with read=false.
func (s *InMemoryStore) CountUnread(ctx context.Context, senderID, receiverID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range s.byPair[PairKey(senderID, receiverID)] {
		m := s.msgs[id]
		if m != nil && m.SenderID == senderID && m.ReceiverID == receiverID && !m.Read {
			n++
		}
	}
	return n, nil
}

// UpsertSummary writes one orientation record with merge semantics.
func (s *InMemoryStore) UpsertSummary(ctx context.Context, self, other, lastMessage string, lastMessageTime, updatedAt time.Time) error {
	if self == "" || other == "" {
		return errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.summaries[self]
	for i := range rows {
		if rows[i].Other == other {
			rows[i].LastMessage = lastMessage
			rows[i].LastMessageTime = lastMessageTime
			rows[i].UpdatedAt = updatedAt
			return nil
		}
	}
	s.summaries[self] = append(rows, Summary{
		Self:            self,
		Other:           other,
		LastMessage:     lastMessage,
		LastMessageTime: lastMessageTime,
		UpdatedAt:       updatedAt,
	})
	return nil
}

// SummariesFor returns a copy of all orientation records for self.
func (s *InMemoryStore) SummariesFor(ctx context.Context, self string) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Summary(nil), s.summaries[self]...), nil
}
