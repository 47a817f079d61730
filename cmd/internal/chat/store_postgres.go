package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/cmd/identity/ids"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Consistency model:
// - Each message insert is a single-statement atomic write.
// - The two orientation-summary upserts are issued independently by the caller;
//   no cross-document transaction is attempted.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "pulse").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "pulse",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// AppendMessage inserts a message row with a ULID id assigned here.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	if s == nil || s.pool == nil {
		return Message{}, errors.New("chat: nil store")
	}
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

	messages := pgIdent(s.schema, "messages")

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+messages+` (id, sender_id, receiver_id, content, ts, read)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Timestamp, msg.Read,
	); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

// DirectionalHistory returns sender->receiver messages ordered by (ts, id) ASC.
func (s *PostgresStore) DirectionalHistory(ctx context.Context, senderID, receiverID string) ([]Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := pgIdent(s.schema, "messages")

	rows, err := s.pool.Query(ctx,
		`SELECT id, sender_id, receiver_id, content, ts, read
		   FROM `+messages+`
		  WHERE sender_id = $1 AND receiver_id = $2
		  ORDER BY ts ASC, id ASC`,
		senderID, receiverID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Timestamp, &m.Read); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips read=true for the given ids in one batched statement.
func (s *PostgresStore) MarkRead(ctx context.Context, msgIDs []string) error {
	if s == nil || s.pool == nil {
		return errors.New("chat: nil store")
	}
	if len(msgIDs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	messages := pgIdent(s.schema, "messages")

	_, err := s.pool.Exec(ctx,
		`UPDATE `+messages+` SET read = TRUE WHERE id = ANY($1) AND read = FALSE`,
		msgIDs,
	)
	return err
}

// CountUnread returns the live unread count for the sender->receiver direction.
func (s *PostgresStore) CountUnread(ctx context.Context, senderID, receiverID string) (int, error) {
	if s == nil || s.pool == nil {
		return 0, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	messages := pgIdent(s.schema, "messages")

	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM `+messages+`
		  WHERE sender_id = $1 AND receiver_id = $2 AND read = FALSE`,
		senderID, receiverID,
	).Scan(&n)
	return n, err
}

// UpsertSummary merges one orientation record keyed by (self_id, other_id).
func (s *PostgresStore) UpsertSummary(ctx context.Context, self, other, lastMessage string, lastMessageTime, updatedAt time.Time) error {
	if s == nil || s.pool == nil {
		return errors.New("chat: nil store")
	}
	if self == "" || other == "" {
		return errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	summaries := pgIdent(s.schema, "conversation_summaries")

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+summaries+` (self_id, other_id, last_message, last_message_time, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (self_id, other_id) DO UPDATE
		    SET last_message = EXCLUDED.last_message,
		        last_message_time = EXCLUDED.last_message_time,
		        updated_at = EXCLUDED.updated_at`,
		self, other, lastMessage, lastMessageTime, updatedAt,
	)
	return err
}

// SummariesFor returns all orientation records with self_id = self.
func (s *PostgresStore) SummariesFor(ctx context.Context, self string) ([]Summary, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summaries := pgIdent(s.schema, "conversation_summaries")

	rows, err := s.pool.Query(ctx,
		`SELECT self_id, other_id, last_message, last_message_time, updated_at
		   FROM `+summaries+`
		  WHERE self_id = $1`,
		self,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.Self, &sum.Other, &sum.LastMessage, &sum.LastMessageTime, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
