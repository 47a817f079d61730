package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"pulse/cmd/identity/ids"
)

// BadgerStore is an embedded Store for single-node deployments.
//
// Key layout (NUL-separated; user ids may contain any printable byte,
// so a printable delimiter would let "a:b" collide with self "a"):
//   - "msg:{id}"                      -> JSON message; ids are ULIDs, so key order is time order
//   - "pair\x00{pairKey}\x00{id}"     -> empty; per-pair index, chronological by construction
//   - "sum\x00{self}\x00{other}"      -> JSON orientation summary
//
// The ULID in the key replaces a zero-padded nanosecond timestamp: it is
// lexicographically time-sorted and collision-free at the same instant.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

// NewBadgerStore opens (or creates) a Badger database at dir.
func NewBadgerStore(dir string, log *slog.Logger) (*BadgerStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, log: log}, nil
}

// Close closes the underlying database. The store owns it.
func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func msgKey(id string) []byte           { return []byte("msg:" + id) }
func pairIdxKey(pair, id string) []byte { return []byte("pair\x00" + pair + "\x00" + id) }
func sumKey(self, other string) []byte  { return []byte("sum\x00" + self + "\x00" + other) }

func sumPrefix(self string) []byte { return []byte("sum\x00" + self + "\x00") }

// AppendMessage stores the message and its pair-index entry in one transaction.
func (s *BadgerStore) AppendMessage(ctx context.Context, msg Message) (Message, error) {
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

	raw, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}

	pair := PairKey(msg.SenderID, msg.ReceiverID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(id), raw); err != nil {
			return err
		}
		return txn.Set(pairIdxKey(pair, id), nil)
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DirectionalHistory scans the pair index and filters by direction.
// The index is keyed by ULID, so iteration order is already chronological.
func (s *BadgerStore) DirectionalHistory(ctx context.Context, senderID, receiverID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Message
	err := s.forEachPairMessage(PairKey(senderID, receiverID), func(m Message) {
		if m.SenderID == senderID && m.ReceiverID == receiverID {
			out = append(out, m)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead read-modify-writes each message in one transaction.
func (s *BadgerStore) MarkRead(ctx context.Context, msgIDs []string) error {
	if len(msgIDs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, id := range msgIDs {
			item, err := txn.Get(msgKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			var m Message
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &m) }); err != nil {
				return err
			}
			if m.Read {
				continue
			}
			m.Read = true

			raw, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := txn.Set(msgKey(id), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountUnread counts unread sender->receiver messages via the pair index.
func (s *BadgerStore) CountUnread(ctx context.Context, senderID, receiverID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0
	err := s.forEachPairMessage(PairKey(senderID, receiverID), func(m Message) {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Read {
			n++
		}
	})
	return n, err
}

// UpsertSummary merges one orientation record.
func (s *BadgerStore) UpsertSummary(ctx context.Context, self, other, lastMessage string, lastMessageTime, updatedAt time.Time) error {
	if self == "" || other == "" {
		return errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		sum := Summary{Self: self, Other: other}

		item, err := txn.Get(sumKey(self, other))
		switch {
		case err == nil:
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &sum) }); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// First contact between this orientation; start fresh.
		default:
			return err
		}

		sum.LastMessage = lastMessage
		sum.LastMessageTime = lastMessageTime
		sum.UpdatedAt = updatedAt

		raw, err := json.Marshal(sum)
		if err != nil {
			return err
		}
		return txn.Set(sumKey(self, other), raw)
	})
}

// SummariesFor prefix-scans all orientation records for self.
func (s *BadgerStore) SummariesFor(ctx context.Context, self string) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := sumPrefix(self)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sum Summary
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &sum) }); err != nil {
				return err
			}
			out = append(out, sum)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) forEachPairMessage(pair string, fn func(Message)) error {
	return s.db.View(func(txn *badger.Txn) error {
		prefixStr := "pair\x00" + pair + "\x00"
		prefix := []byte(prefixStr)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefixStr):])

			item, err := txn.Get(msgKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Dangling index entry; skip rather than fail the scan.
				s.log.Warn("store.badger.index.dangling", "id", id)
				continue
			}
			if err != nil {
				return err
			}

			var m Message
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &m) }); err != nil {
				return err
			}
			fn(m)
		}
		return nil
	})
}
