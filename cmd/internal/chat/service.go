package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"pulse/cmd/internal/directory"
)

// Service is the single logical entry point both write channels funnel through.
//
// The HTTP channel and the realtime transport are thin adapters over Accept,
// History, and ListConversations; neither duplicates persistence, summary, or
// fanout logic, and neither trusts a client-supplied sender id.
type Service struct {
	log     *slog.Logger
	store   Store
	fanout  Deliverer
	dir     directory.Directory
	metrics *Metrics

	now func() time.Time
}

// NewService wires the ingestion coordinator with its collaborators.
// fanout and dir may be nil (no live delivery / no profile attachment).
func NewService(log *slog.Logger, store Store, fanout Deliverer, dir directory.Directory, metrics *Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		log:     log,
		store:   store,
		fanout:  fanout,
		dir:     dir,
		metrics: metrics,
		now:     time.Now,
	}
}

// Accept validates, persists, indexes, and fans out one message.
//
// Side-effect order is fixed: durable message write, then both orientation
// summary upserts, then delivery. Once the message write succeeds nothing is
// rolled back; summary and push failures are logged and left to converge.
func (s *Service) Accept(ctx context.Context, senderID, receiverID, content string) (Message, error) {
	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	content = strings.TrimSpace(content)

	if senderID == "" || receiverID == "" || content == "" {
		s.metrics.Rejected.Inc()
		return Message{}, fmt.Errorf("%w: sender, receiver and content are required", ErrInvalidArgument)
	}

	now := s.now().UTC()
	msg := Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  now,
		Read:       false,
	}

	stored, err := s.store.AppendMessage(ctx, msg)
	if err != nil {
		return Message{}, fmt.Errorf("%w: append message: %v", ErrTransient, err)
	}

	pair := PairKey(senderID, receiverID)
	s.log.Info("ingest.accept", "pair", pair, "msg_id", stored.ID)

	// Both orientation records are rewritten on every message; a failed side
	// self-heals on the next message between the same pair.
	orientations := [2][2]string{{senderID, receiverID}, {receiverID, senderID}}
	for _, o := range orientations {
		s.upsertSummary(ctx, o[0], o[1], content, now, pair)
	}

	if s.fanout != nil {
		out, err := s.fanout.Deliver(ctx, stored)
		if err != nil {
			// Delivery is best-effort; the ack reflects persistence, not push.
			s.log.Warn("ingest.deliver.fail", "msg_id", stored.ID, "err", err)
		} else {
			stored = out
		}
	}

	s.metrics.Accepted.Inc()
	return stored, nil
}

// upsertSummary writes one orientation record with a single best-effort retry.
func (s *Service) upsertSummary(ctx context.Context, self, other, lastMessage string, at time.Time, pair string) {
	err := s.store.UpsertSummary(ctx, self, other, lastMessage, at, s.now().UTC())
	if err != nil {
		err = s.store.UpsertSummary(ctx, self, other, lastMessage, at, s.now().UTC())
	}
	if err != nil {
		s.metrics.SummaryFailures.Inc()
		s.log.Error("ingest.summary.fail",
			"pair", pair, "self", self, "kind", ErrInconsistent.Error(), "err", err)
	}
}

// History returns the full conversation between currentUserID and otherUserID,
// ascending by timestamp, marking the requester's unseen inbound messages read.
func (s *Service) History(ctx context.Context, currentUserID, otherUserID string) ([]Message, error) {
	currentUserID = strings.TrimSpace(currentUserID)
	otherUserID = strings.TrimSpace(otherUserID)
	if currentUserID == "" || otherUserID == "" {
		return nil, fmt.Errorf("%w: both participant ids are required", ErrInvalidArgument)
	}

	sent, err := s.store.DirectionalHistory(ctx, currentUserID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: history query: %v", ErrTransient, err)
	}
	received, err := s.store.DirectionalHistory(ctx, otherUserID, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: history query: %v", ErrTransient, err)
	}

	merged := mergeByTimestamp(sent, received)

	unread := lo.FilterMap(received, func(m Message, _ int) (string, bool) {
		return m.ID, !m.Read
	})

	if len(unread) > 0 {
		if err := s.store.MarkRead(ctx, unread); err != nil {
			// Partial or failed batches merely delay read-state convergence.
			s.log.Warn("history.mark_read.fail", "count", len(unread), "err", err)
		} else {
			s.metrics.MarkReadBatches.Inc()
			markRead(merged, unread)
		}
	}

	s.metrics.HistoryFetches.Inc()
	return merged, nil
}

// ListConversations returns the requester's conversations, most recent first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}

	sums, err := s.store.SummariesFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: summary query: %v", ErrTransient, err)
	}

	sort.Slice(sums, func(i, j int) bool {
		return sums[i].LastMessageTime.After(sums[j].LastMessageTime)
	})

	out := make([]Conversation, 0, len(sums))
	for _, sum := range sums {
		// Unread is always recomputed from the ledger, never cached on the
		// summary: read-amplification traded for correctness over staleness.
		unread, err := s.store.CountUnread(ctx, sum.Other, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: unread count: %v", ErrTransient, err)
		}

		out = append(out, Conversation{
			OtherUserID:     sum.Other,
			LastMessage:     sum.LastMessage,
			LastMessageTime: sum.LastMessageTime,
			UnreadCount:     unread,
			Profile:         s.lookupProfile(ctx, sum.Other),
		})
	}
	return out, nil
}

// lookupProfile degrades to nil on any directory failure.
func (s *Service) lookupProfile(ctx context.Context, userID string) *directory.Profile {
	if s.dir == nil {
		return nil
	}
	p, err := s.dir.Lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			s.log.Warn("list.profile.fail", "user_id", userID, "err", err)
		}
		return nil
	}
	return &p
}

// mergeByTimestamp merges two (timestamp, id)-ordered sequences into one
// globally ascending sequence. Stable; ties break on the store-assigned id.
func mergeByTimestamp(a, b []Message) []Message {
	out := make([]Message, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if messageLess(a[i], b[j]) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func messageLess(x, y Message) bool {
	if x.Timestamp.Equal(y.Timestamp) {
		return x.ID < y.ID
	}
	return x.Timestamp.Before(y.Timestamp)
}

func markRead(msgs []Message, msgIDs []string) {
	set := make(map[string]struct{}, len(msgIDs))
	for _, id := range msgIDs {
		set[id] = struct{}{}
	}
	for i := range msgs {
		if _, ok := set[msgs[i].ID]; ok {
			msgs[i].Read = true
		}
	}
}
