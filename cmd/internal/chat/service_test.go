package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pulse/cmd/internal/directory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepClock hands out strictly increasing timestamps.
type stepClock struct {
	t time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T) (*Service, *InMemoryStore, *Presence) {
	t.Helper()

	store := NewInMemoryStore()
	presence := NewPresence(testLogger())
	metrics := NewMetrics(nil)
	fanout := NewFanout(testLogger(), presence, store, metrics)

	svc := NewService(testLogger(), store, fanout, nil, metrics)
	svc.now = newStepClock().Now
	return svc, store, presence
}

// captureConn is a Conn that records every delivered event.
type captureConn struct {
	events []PushEvent
	full   bool
}

func (c *captureConn) TryDeliver(ev PushEvent) bool {
	if c.full {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func TestAccept_RejectsEmptyFields(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		sender   string
		receiver string
		content  string
	}{
		{name: "empty content", sender: "alice", receiver: "bob", content: "   "},
		{name: "empty sender", sender: "", receiver: "bob", content: "hi"},
		{name: "empty receiver", sender: "alice", receiver: "", content: "hi"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Accept(ctx, tc.sender, tc.receiver, tc.content)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("err=%v want ErrInvalidArgument", err)
			}
		})
	}

	// No side effects for rejected sends.
	msgs, err := store.DirectionalHistory(ctx, "alice", "bob")
	if err != nil || len(msgs) != 0 {
		t.Fatalf("ledger not empty after rejections: %d msgs, err=%v", len(msgs), err)
	}
	sums, _ := store.SummariesFor(ctx, "alice")
	if len(sums) != 0 {
		t.Fatalf("summaries written for rejected send: %d", len(sums))
	}
}

func TestAccept_WritesLedgerAndBothOrientations(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Accept(ctx, "alice", "bob", "  hi  ")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("stored message has no id")
	}
	if msg.Content != "hi" {
		t.Fatalf("content=%q want trimmed %q", msg.Content, "hi")
	}
	if msg.Read {
		t.Fatal("offline recipient: message must stay unread")
	}
	if msg.Timestamp.Location() != time.UTC {
		t.Fatal("timestamp must be UTC")
	}

	for _, self := range []string{"alice", "bob"} {
		sums, err := store.SummariesFor(ctx, self)
		if err != nil {
			t.Fatalf("SummariesFor(%s): %v", self, err)
		}
		if len(sums) != 1 {
			t.Fatalf("SummariesFor(%s)=%d records, want 1", self, len(sums))
		}
		if sums[0].LastMessage != "hi" {
			t.Fatalf("summary last message=%q", sums[0].LastMessage)
		}
	}
}

func TestHistory_MergesBothDirectionsAscending(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Accept(ctx, "alice", "bob", "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, "bob", "alice", "there"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, "alice", "bob", "how are you"); err != nil {
		t.Fatal(err)
	}

	aliceView, err := svc.History(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("History(alice): %v", err)
	}
	bobView, err := svc.History(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("History(bob): %v", err)
	}

	wantOrder := []string{"hi", "there", "how are you"}
	for _, view := range [][]Message{aliceView, bobView} {
		if len(view) != len(wantOrder) {
			t.Fatalf("len=%d want=%d", len(view), len(wantOrder))
		}
		for i, m := range view {
			if m.Content != wantOrder[i] {
				t.Fatalf("pos %d content=%q want=%q", i, m.Content, wantOrder[i])
			}
		}
		for i := 1; i < len(view); i++ {
			if view[i].Timestamp.Before(view[i-1].Timestamp) {
				t.Fatalf("history not ascending at %d", i)
			}
		}
	}

	// Both participants observe the same interleaving.
	for i := range aliceView {
		if aliceView[i].ID != bobView[i].ID {
			t.Fatalf("views diverge at %d: %s vs %s", i, aliceView[i].ID, bobView[i].ID)
		}
	}
}

func TestHistory_MarksInboundReadIdempotently(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		if _, err := svc.Accept(ctx, "alice", "bob", content); err != nil {
			t.Fatal(err)
		}
	}

	unread, err := store.CountUnread(ctx, "alice", "bob")
	if err != nil || unread != 3 {
		t.Fatalf("unread=%d err=%v, want 3", unread, err)
	}

	// Bob fetching history marks alice->bob messages read, reflected in-place.
	msgs, err := svc.History(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	for _, m := range msgs {
		if !m.Read {
			t.Fatalf("message %s not marked read in response", m.ID)
		}
	}

	unread, err = store.CountUnread(ctx, "alice", "bob")
	if err != nil || unread != 0 {
		t.Fatalf("unread=%d err=%v, want 0", unread, err)
	}

	// Second fetch is a no-op on read state.
	if _, err := svc.History(ctx, "bob", "alice"); err != nil {
		t.Fatalf("History again: %v", err)
	}
	unread, _ = store.CountUnread(ctx, "alice", "bob")
	if unread != 0 {
		t.Fatalf("read marking not idempotent: unread=%d", unread)
	}

	// Alice fetching her own view must not touch her outbound messages' state
	// beyond what bob already read.
	if _, err := svc.History(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
}

func TestAccept_OnlineRecipientGetsPushMarkedRead(t *testing.T) {
	t.Parallel()

	svc, store, presence := newTestService(t)
	ctx := context.Background()

	conn := &captureConn{}
	presence.Connect("bob", "conn-1", conn)

	msg, err := svc.Accept(ctx, "alice", "bob", "ping")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !msg.Read {
		t.Fatal("online recipient: ack must reflect read=true")
	}

	if len(conn.events) != 1 {
		t.Fatalf("events=%d want 1", len(conn.events))
	}
	ev := conn.events[0]
	if ev.Kind != PushMessage {
		t.Fatalf("kind=%v want PushMessage", ev.Kind)
	}
	if !ev.Message.Read {
		t.Fatal("pushed message must carry read=true")
	}

	unread, _ := store.CountUnread(ctx, "alice", "bob")
	if unread != 0 {
		t.Fatalf("unread=%d want 0 after live delivery", unread)
	}
}

func TestAccept_OfflineRecipientStaysUnread(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Accept(ctx, "alice", "bob", "ping")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if msg.Read {
		t.Fatal("offline recipient: ack must reflect read=false")
	}

	unread, _ := store.CountUnread(ctx, "alice", "bob")
	if unread != 1 {
		t.Fatalf("unread=%d want 1", unread)
	}
}

func TestAccept_SaturatedConnectionDoesNotFailSend(t *testing.T) {
	t.Parallel()

	svc, _, presence := newTestService(t)
	ctx := context.Background()

	presence.Connect("bob", "conn-1", &captureConn{full: true})

	if _, err := svc.Accept(ctx, "alice", "bob", "ping"); err != nil {
		t.Fatalf("Accept must succeed despite dropped push: %v", err)
	}
}

func TestListConversations_OrderAndUnread(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Accept(ctx, "carol", "bob", "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, "alice", "bob", "second"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, "alice", "bob", "third"); err != nil {
		t.Fatal(err)
	}

	convs, err := svc.ListConversations(ctx, "bob")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("len=%d want 2", len(convs))
	}

	// Most recently active first.
	if convs[0].OtherUserID != "alice" || convs[1].OtherUserID != "carol" {
		t.Fatalf("order=%s,%s want alice,carol", convs[0].OtherUserID, convs[1].OtherUserID)
	}
	if convs[0].UnreadCount != 2 || convs[1].UnreadCount != 1 {
		t.Fatalf("unread=%d,%d want 2,1", convs[0].UnreadCount, convs[1].UnreadCount)
	}
	if convs[0].LastMessage != "third" {
		t.Fatalf("last message=%q want %q", convs[0].LastMessage, "third")
	}

	// Reading a conversation drops its unread count to zero.
	if _, err := svc.History(ctx, "bob", "alice"); err != nil {
		t.Fatal(err)
	}
	convs, err = svc.ListConversations(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if convs[0].UnreadCount != 0 {
		t.Fatalf("unread after history=%d want 0", convs[0].UnreadCount)
	}
}

func TestListConversations_AttachesProfiles(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	dir := directory.NewMemoryDirectory()
	dir.Put(directory.Profile{ID: "alice", Username: "alice", DisplayName: "Alice"})

	svc := NewService(testLogger(), store, nil, dir, nil)
	svc.now = newStepClock().Now
	ctx := context.Background()

	if _, err := svc.Accept(ctx, "alice", "bob", "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, "carol", "bob", "hey"); err != nil {
		t.Fatal(err)
	}

	convs, err := svc.ListConversations(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range convs {
		switch c.OtherUserID {
		case "alice":
			if c.Profile == nil || c.Profile.Username != "alice" {
				t.Fatalf("alice profile missing: %+v", c.Profile)
			}
		case "carol":
			// Unknown user degrades to a nil profile, not an error.
			if c.Profile != nil {
				t.Fatalf("carol should have nil profile: %+v", c.Profile)
			}
		}
	}
}

func TestHistory_RejectsMissingParticipants(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	if _, err := svc.History(context.Background(), "alice", " "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
	if _, err := svc.ListConversations(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
}

func TestMergeByTimestamp_TiesBreakOnID(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := []Message{{ID: "01B", Timestamp: ts}}
	b := []Message{{ID: "01A", Timestamp: ts}, {ID: "01C", Timestamp: ts.Add(time.Second)}}

	got := mergeByTimestamp(a, b)
	want := []string{"01A", "01B", "01C"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("pos %d id=%s want=%s", i, got[i].ID, id)
		}
	}
}

func TestPairKey_Canonical(t *testing.T) {
	t.Parallel()

	if PairKey("alice", "bob") != PairKey("bob", "alice") {
		t.Fatal("pair key must be orientation independent")
	}
	if PairKey("alice", "bob") != "alice:bob" {
		t.Fatalf("pair key=%q", PairKey("alice", "bob"))
	}
}
