// Package main provides a CI-friendly WebSocket smoke test for Pulse realtime.
//
// It validates:
//   - handshake + subprotocol selection
//   - hello/ack session establishment
//   - send -> message_accepted on the sender
//   - fanout message_received on the recipient (marked read while online)
//   - typing passthrough
//
// Run against a dev server with static tokens, e.g.:
//
//	PULSE_DEV_TOKENS="tok-a:alice,tok-b:bob" ./pulse &
//	go run ./tools/scripts/ws-smoke.go -url ws://127.0.0.1:8080/ws -token-a tok-a -token-b tok-b
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"

	v1 "pulse/shared/contracts/chat/v1"
)

const (
	subprotocol  = "pulse.chat.v1"
	maxReadBytes = 1 << 20 // 1MiB
)

type smokeClient struct {
	name      string
	conn      *websocket.Conn
	sessionID string
	userID    string
}

func dial(ctx context.Context, name, wsURL, origin string) (*smokeClient, error) {
	hdr := http.Header{}
	if origin != "" {
		hdr.Set("Origin", origin)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   hdr,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", name, err)
	}
	conn.SetReadLimit(maxReadBytes)

	if sp := conn.Subprotocol(); sp != subprotocol {
		_ = conn.Close(websocket.StatusProtocolError, "bad subprotocol")
		return nil, fmt.Errorf("%s: subprotocol=%q want=%q", name, sp, subprotocol)
	}

	return &smokeClient{name: name, conn: conn}, nil
}

func (c *smokeClient) send(ctx context.Context, typ string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      fmt.Sprintf("smoke-%s-%d", c.name, time.Now().UnixNano()),
		TS:      time.Now().UTC(),
		Payload: raw,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, b)
}

// expect reads envelopes until one of type want arrives (errors fail fast).
func (c *smokeClient) expect(ctx context.Context, want string) (v1.Envelope, error) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return v1.Envelope{}, fmt.Errorf("%s: read: %w", c.name, err)
		}
		var env v1.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return v1.Envelope{}, fmt.Errorf("%s: decode: %w", c.name, err)
		}
		if env.Type == v1.TypeError {
			var p v1.ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			return v1.Envelope{}, fmt.Errorf("%s: server error %s: %s", c.name, p.Code, p.Message)
		}
		if env.Type == want {
			return env, nil
		}
		// Skip unrelated pushes (e.g. typing while waiting for a message).
	}
}

func (c *smokeClient) hello(ctx context.Context, token string) error {
	if err := c.send(ctx, v1.TypeHello, v1.HelloPayload{Token: token}); err != nil {
		return err
	}
	env, err := c.expect(ctx, v1.TypeHelloAck)
	if err != nil {
		return err
	}
	var ack v1.HelloAckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		return err
	}
	if ack.SessionID == "" || ack.UserID == "" {
		return fmt.Errorf("%s: empty hello ack: %+v", c.name, ack)
	}
	c.sessionID = ack.SessionID
	c.userID = ack.UserID
	return nil
}

func (c *smokeClient) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "smoke done")
}

func run() error {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "websocket endpoint")
		origin  = flag.String("origin", "http://localhost", "Origin header value")
		tokenA  = flag.String("token-a", "", "bearer token for the sender")
		tokenB  = flag.String("token-b", "", "bearer token for the recipient")
		timeout = flag.Duration("timeout", 15*time.Second, "overall deadline")
	)
	flag.Parse()

	if *tokenA == "" || *tokenB == "" {
		return errors.New("both -token-a and -token-b are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	alice, err := dial(ctx, "alice", *wsURL, *origin)
	if err != nil {
		return err
	}
	defer alice.close()

	bob, err := dial(ctx, "bob", *wsURL, *origin)
	if err != nil {
		return err
	}
	defer bob.close()

	if err := alice.hello(ctx, *tokenA); err != nil {
		return err
	}
	if err := bob.hello(ctx, *tokenB); err != nil {
		return err
	}
	fmt.Printf("hello ok: alice=%s bob=%s\n", alice.userID, bob.userID)

	// Typing passthrough: bob should see it before any message.
	if err := alice.send(ctx, v1.TypeTyping, v1.TypingPayload{ReceiverID: bob.userID, IsTyping: true}); err != nil {
		return err
	}
	if _, err := bob.expect(ctx, v1.TypeTyping); err != nil {
		return err
	}
	fmt.Println("typing ok")

	content := fmt.Sprintf("smoke %d", time.Now().Unix())
	if err := alice.send(ctx, v1.TypeMessageSend, v1.MessageSendPayload{ReceiverID: bob.userID, Content: content}); err != nil {
		return err
	}

	recvEnv, err := bob.expect(ctx, v1.TypeMessageReceived)
	if err != nil {
		return err
	}
	var recv v1.MessagePayload
	if err := json.Unmarshal(recvEnv.Payload, &recv); err != nil {
		return err
	}
	if recv.Content != content || recv.SenderID != alice.userID {
		return fmt.Errorf("fanout mismatch: %+v", recv)
	}
	if !recv.Read {
		return errors.New("recipient online: message should arrive marked read")
	}
	fmt.Printf("fanout ok: id=%s\n", recv.ID)

	ackEnv, err := alice.expect(ctx, v1.TypeMessageAccepted)
	if err != nil {
		return err
	}
	var ack v1.MessagePayload
	if err := json.Unmarshal(ackEnv.Payload, &ack); err != nil {
		return err
	}
	if ack.ID != recv.ID {
		return fmt.Errorf("ack id=%s fanout id=%s", ack.ID, recv.ID)
	}
	fmt.Println("ack ok")

	fmt.Println("smoke ok")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "smoke failed:", err)
		os.Exit(1)
	}
}
