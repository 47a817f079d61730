package chat

import (
	"sync"
	"testing"
)

func TestPresence_ConnectDisconnect(t *testing.T) {
	t.Parallel()

	p := NewPresence(testLogger())

	if p.Online("alice") {
		t.Fatal("empty registry reports online")
	}

	p.Connect("alice", "c1", &captureConn{})
	p.Connect("alice", "c2", &captureConn{})
	if !p.Online("alice") {
		t.Fatal("alice should be online")
	}

	p.Disconnect("alice", "c1")
	if !p.Online("alice") {
		t.Fatal("one connection left, still online")
	}

	p.Disconnect("alice", "c2")
	if p.Online("alice") {
		t.Fatal("all connections gone, still online")
	}
}

func TestPresence_PushFansOutToAllConnections(t *testing.T) {
	t.Parallel()

	p := NewPresence(testLogger())

	c1 := &captureConn{}
	c2 := &captureConn{}
	full := &captureConn{full: true}
	p.Connect("bob", "c1", c1)
	p.Connect("bob", "c2", c2)
	p.Connect("bob", "c3", full)

	n := p.Push("bob", PushEvent{Kind: PushMessage, Message: Message{ID: "m1"}})
	if n != 2 {
		t.Fatalf("delivered=%d want 2 (saturated conn dropped)", n)
	}
	if len(c1.events) != 1 || len(c2.events) != 1 {
		t.Fatalf("events c1=%d c2=%d want 1,1", len(c1.events), len(c2.events))
	}

	if n := p.Push("nobody", PushEvent{Kind: PushMessage}); n != 0 {
		t.Fatalf("push to absent user delivered=%d", n)
	}
}

func TestPresence_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	p := NewPresence(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := string(rune('a' + n))
			p.Connect("alice", connID, &captureConn{})
			p.Online("alice")
			p.Push("alice", PushEvent{Kind: PushTyping})
			p.Disconnect("alice", connID)
		}(i)
	}
	wg.Wait()

	if p.Online("alice") {
		t.Fatal("all goroutines disconnected, still online")
	}
}
