package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	v1 "pulse/shared/contracts/chat/v1"

	"pulse/cmd/identity"
	"pulse/cmd/internal/chat"
	"pulse/cmd/internal/directory"
)

// newSessionTestServer wires a gateway to an in-memory core, the same shape
// app.New builds, and mounts it on an httptest server.
func newSessionTestServer(t *testing.T) (*httptest.Server, *chat.Presence) {
	t.Helper()
	t.Setenv("PULSE_WS_ORIGIN_REQUIRED", "false")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := chat.NewInMemoryStore()
	presence := chat.NewPresence(log)
	fanout := chat.NewFanout(log, presence, store, nil)
	svc := chat.NewService(log, store, fanout, directory.NewMemoryDirectory(), nil)
	verifier := identity.StaticVerifier{"tok-alice": "alice", "tok-bob": "bob"}

	g := NewWSGateway(log, svc, presence, verifier)
	srv := httptest.NewServer(http.HandlerFunc(g.HandleWS))
	t.Cleanup(srv.Close)
	return srv, presence
}

func dialSession(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocolV1},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendWire(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	b, err := json.Marshal(newEnvelope(typ, raw, time.Now().UTC()))
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recvWire(t *testing.T, conn *websocket.Conn) v1.Envelope {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func helloAs(t *testing.T, conn *websocket.Conn, token string) v1.HelloAckPayload {
	t.Helper()

	sendWire(t, conn, v1.TypeHello, v1.HelloPayload{Token: token})
	env := recvWire(t, conn)
	if env.Type != v1.TypeHelloAck {
		t.Fatalf("type=%q want hello_ack", env.Type)
	}
	var ack v1.HelloAckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	return ack
}

func TestHandleWS_HelloResolvesIdentity(t *testing.T) {
	srv, presence := newSessionTestServer(t)
	conn := dialSession(t, srv)

	ack := helloAs(t, conn, "tok-alice")
	if ack.UserID != "alice" {
		t.Fatalf("user_id=%q want alice", ack.UserID)
	}
	if ack.SessionID == "" {
		t.Fatal("session_id missing")
	}
	if !presence.Online("alice") {
		t.Fatal("alice not registered in presence after hello")
	}

	_ = conn.Close(websocket.StatusNormalClosure, "done")

	// Presence removal runs on the server's shutdown path, regardless of
	// which goroutine triggers it.
	deadline := time.Now().Add(2 * time.Second)
	for presence.Online("alice") {
		if time.Now().After(deadline) {
			t.Fatal("presence entry not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleWS_HelloRejectsBadToken(t *testing.T) {
	srv, presence := newSessionTestServer(t)
	conn := dialSession(t, srv)

	sendWire(t, conn, v1.TypeHello, v1.HelloPayload{Token: "nope"})

	// The server may get the error envelope out before tearing the
	// connection down, but the teardown itself is the contract.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err == nil {
		var env v1.Envelope
		if uerr := json.Unmarshal(data, &env); uerr != nil {
			t.Fatalf("unmarshal: %v", uerr)
		}
		if env.Type != v1.TypeError {
			t.Fatalf("type=%q want error", env.Type)
		}
		_, _, err = conn.Read(ctx)
	}
	if err == nil {
		t.Fatal("connection survived failed handshake")
	}
	if presence.Online("nope") || presence.Online("") {
		t.Fatal("failed handshake registered presence")
	}
}

func TestHandleWS_MessageSendAckAndDelivery(t *testing.T) {
	srv, _ := newSessionTestServer(t)

	bobConn := dialSession(t, srv)
	helloAs(t, bobConn, "tok-bob")

	aliceConn := dialSession(t, srv)
	helloAs(t, aliceConn, "tok-alice")

	sendWire(t, aliceConn, v1.TypeMessageSend, v1.MessageSendPayload{
		ReceiverID: "bob",
		Content:    "hi bob",
	})

	ackEnv := recvWire(t, aliceConn)
	if ackEnv.Type != v1.TypeMessageAccepted {
		t.Fatalf("sender got type=%q want message_accepted", ackEnv.Type)
	}
	var accepted v1.MessagePayload
	if err := json.Unmarshal(ackEnv.Payload, &accepted); err != nil {
		t.Fatalf("accepted payload: %v", err)
	}
	if accepted.ID == "" {
		t.Fatal("accepted message has no id")
	}
	// Sender comes from the authenticated connection, never the payload.
	if accepted.SenderID != "alice" || accepted.ReceiverID != "bob" || accepted.Content != "hi bob" {
		t.Fatalf("accepted=%+v", accepted)
	}
	// Recipient was online, so the stored message is already read.
	if !accepted.Read {
		t.Fatal("accepted message not marked read despite live recipient")
	}

	recvEnv := recvWire(t, bobConn)
	if recvEnv.Type != v1.TypeMessageReceived {
		t.Fatalf("recipient got type=%q want message_received", recvEnv.Type)
	}
	var received v1.MessagePayload
	if err := json.Unmarshal(recvEnv.Payload, &received); err != nil {
		t.Fatalf("received payload: %v", err)
	}
	if received.ID != accepted.ID {
		t.Fatalf("received id=%q want %q", received.ID, accepted.ID)
	}
	if received.SenderID != "alice" || !received.Read {
		t.Fatalf("received=%+v", received)
	}
}

func TestHandleWS_MessageSendRequiresHello(t *testing.T) {
	srv, _ := newSessionTestServer(t)
	conn := dialSession(t, srv)

	sendWire(t, conn, v1.TypeMessageSend, v1.MessageSendPayload{
		ReceiverID: "bob",
		Content:    "hi",
	})

	env := recvWire(t, conn)
	if env.Type != v1.TypeError {
		t.Fatalf("type=%q want error", env.Type)
	}
	var p v1.ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("error payload: %v", err)
	}
	if p.Code != "unauthenticated" {
		t.Fatalf("code=%q want unauthenticated", p.Code)
	}
}

func TestHandleWS_TypingForwarded(t *testing.T) {
	srv, _ := newSessionTestServer(t)

	bobConn := dialSession(t, srv)
	helloAs(t, bobConn, "tok-bob")

	aliceConn := dialSession(t, srv)
	helloAs(t, aliceConn, "tok-alice")

	sendWire(t, aliceConn, v1.TypeTyping, v1.TypingPayload{
		ReceiverID: "bob",
		IsTyping:   true,
	})

	env := recvWire(t, bobConn)
	if env.Type != v1.TypeTyping {
		t.Fatalf("type=%q want typing", env.Type)
	}
	var p v1.TypingPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("typing payload: %v", err)
	}
	if p.SenderID != "alice" || p.ReceiverID != "bob" || !p.IsTyping {
		t.Fatalf("typing=%+v", p)
	}
}
