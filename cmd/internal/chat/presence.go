package chat

import (
	"log/slog"
	"sync"
)

// PushKind discriminates what a PushEvent carries.
type PushKind uint8

const (
	// PushMessage delivers a stored message to the recipient.
	PushMessage PushKind = iota + 1
	// PushAccepted acknowledges a stored message back to the sender's connection.
	PushAccepted
	// PushTyping forwards a typing indicator. Never persisted.
	PushTyping
)

// PushEvent is what the core hands to a live connection.
type PushEvent struct {
	Kind    PushKind
	Message Message
	Typing  Typing
}

// Typing is a transient typing indicator between two users.
type Typing struct {
	SenderID   string
	ReceiverID string
	IsTyping   bool
}

// Conn is one live transport connection owned by a user.
//
// TryDeliver must never block: implementations enqueue into a bounded queue
// and report false when the event was dropped.
type Conn interface {
	TryDeliver(ev PushEvent) bool
}

// Presence tracks which users currently hold live connections.
//
// It is a concurrent multimap user id -> connection handles: a user with several
// simultaneous connections is present as long as at least one of them is live.
// Connect/Disconnect are driven by the transport layer; Push is read by fanout.
type Presence struct {
	log *slog.Logger

	mu    sync.RWMutex
	conns map[string]map[string]Conn // user id -> conn id -> conn
}

// NewPresence constructs an empty presence registry.
func NewPresence(log *slog.Logger) *Presence {
	if log == nil {
		log = slog.Default()
	}
	return &Presence{
		log:   log,
		conns: make(map[string]map[string]Conn),
	}
}

// Connect registers a live connection for userID.
func (p *Presence) Connect(userID, connID string, c Conn) {
	if p == nil || userID == "" || connID == "" || c == nil {
		return
	}

	p.mu.Lock()
	set := p.conns[userID]
	if set == nil {
		set = make(map[string]Conn)
		p.conns[userID] = set
	}
	set[connID] = c
	p.mu.Unlock()

	p.log.Info("presence.connect", "user_id", userID, "conn_id", connID)
}

// Disconnect removes a connection; the user goes absent when the last one is gone.
func (p *Presence) Disconnect(userID, connID string) {
	if p == nil || userID == "" || connID == "" {
		return
	}

	p.mu.Lock()
	if set := p.conns[userID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(p.conns, userID)
		}
	}
	p.mu.Unlock()

	p.log.Info("presence.disconnect", "user_id", userID, "conn_id", connID)
}

// Online reports whether userID has at least one live connection right now.
func (p *Presence) Online(userID string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

// Push fans an event out to all of userID's live connections.
// Non-blocking: connections with full queues are skipped. Returns the number
// of connections the event was enqueued to.
func (p *Presence) Push(userID string, ev PushEvent) int {
	if p == nil {
		return 0
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	delivered := 0
	for connID, c := range p.conns[userID] {
		if c == nil {
			continue
		}
		if c.TryDeliver(ev) {
			delivered++
		} else {
			// Drop rather than block the sender's acknowledgement path.
			p.log.Info("presence.push.drop", "user_id", userID, "conn_id", connID)
		}
	}
	return delivered
}
