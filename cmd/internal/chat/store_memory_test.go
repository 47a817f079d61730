package chat

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStore_AppendAssignsOrderedIDs(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var prev string
	for i := 0; i < 5; i++ {
		m, err := s.AppendMessage(ctx, Message{
			SenderID:   "alice",
			ReceiverID: "bob",
			Content:    "m",
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		if m.ID == "" {
			t.Fatal("no id assigned")
		}
		if prev != "" && m.ID <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, m.ID)
		}
		prev = m.ID
	}
}

func TestInMemoryStore_AppendRejectsInvalid(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	if _, err := s.AppendMessage(context.Background(), Message{SenderID: "a", ReceiverID: "b"}); err == nil {
		t.Fatal("empty content accepted")
	}
}

func TestInMemoryStore_DirectionalHistoryIsDirectional(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, _ = s.AppendMessage(ctx, Message{SenderID: "alice", ReceiverID: "bob", Content: "a1", Timestamp: base})
	_, _ = s.AppendMessage(ctx, Message{SenderID: "bob", ReceiverID: "alice", Content: "b1", Timestamp: base.Add(time.Second)})
	_, _ = s.AppendMessage(ctx, Message{SenderID: "alice", ReceiverID: "bob", Content: "a2", Timestamp: base.Add(2 * time.Second)})

	sent, err := s.DirectionalHistory(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(sent) != 2 || sent[0].Content != "a1" || sent[1].Content != "a2" {
		t.Fatalf("alice->bob history wrong: %+v", sent)
	}

	received, err := s.DirectionalHistory(ctx, "bob", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(received) != 1 || received[0].Content != "b1" {
		t.Fatalf("bob->alice history wrong: %+v", received)
	}
}

func TestInMemoryStore_MarkReadAndCountUnread(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m1, _ := s.AppendMessage(ctx, Message{SenderID: "alice", ReceiverID: "bob", Content: "x", Timestamp: base})
	m2, _ := s.AppendMessage(ctx, Message{SenderID: "alice", ReceiverID: "bob", Content: "y", Timestamp: base.Add(time.Second)})

	if n, _ := s.CountUnread(ctx, "alice", "bob"); n != 2 {
		t.Fatalf("unread=%d want 2", n)
	}

	// Unknown ids are ignored, known ids flip exactly once.
	if err := s.MarkRead(ctx, []string{m1.ID, "does-not-exist"}); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, _ := s.CountUnread(ctx, "alice", "bob"); n != 1 {
		t.Fatalf("unread=%d want 1", n)
	}

	if err := s.MarkRead(ctx, []string{m1.ID, m2.ID}); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.CountUnread(ctx, "alice", "bob"); n != 0 {
		t.Fatalf("unread=%d want 0", n)
	}
}

func TestInMemoryStore_UpsertSummaryMerges(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	if err := s.UpsertSummary(ctx, "alice", "bob", "first", t1, t1); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertSummary(ctx, "alice", "bob", "second", t2, t2); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertSummary(ctx, "alice", "carol", "hey", t2, t2); err != nil {
		t.Fatal(err)
	}

	sums, err := s.SummariesFor(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("records=%d want 2 (upsert must merge, not append)", len(sums))
	}
	for _, sum := range sums {
		if sum.Other == "bob" && sum.LastMessage != "second" {
			t.Fatalf("bob record not updated: %+v", sum)
		}
	}

	if err := s.UpsertSummary(ctx, "", "bob", "x", t1, t1); err == nil {
		t.Fatal("empty self accepted")
	}
}

func TestInMemoryStore_ContextCancellation(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.AppendMessage(ctx, Message{SenderID: "a", ReceiverID: "b", Content: "c"}); err == nil {
		t.Fatal("cancelled context accepted")
	}
	if _, err := s.DirectionalHistory(ctx, "a", "b"); err == nil {
		t.Fatal("cancelled context accepted")
	}
}
