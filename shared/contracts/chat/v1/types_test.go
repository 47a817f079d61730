package v1

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{name: "valid hello", env: Envelope{V: Version, Type: TypeHello}, wantErr: false},
		{name: "valid typing", env: Envelope{V: Version, Type: TypeTyping}, wantErr: false},
		{name: "missing version", env: Envelope{Type: TypeHello}, wantErr: true},
		{name: "wrong version", env: Envelope{V: "v2", Type: TypeHello}, wantErr: true},
		{name: "missing type", env: Envelope{V: Version}, wantErr: true},
		{name: "unknown type", env: Envelope{V: Version, Type: "join"}, wantErr: true},
		{name: "blank type", env: Envelope{V: Version, Type: "   "}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.env.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate()=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestEnvelope_WireShape(t *testing.T) {
	t.Parallel()

	raw := `{"v":"v1","type":"message_send","id":"01ABC","ts":"2026-03-01T10:00:00Z","payload":{"receiver_id":"bob","content":"hi"}}`

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if env.ID != "01ABC" {
		t.Fatalf("id=%q", env.ID)
	}
	if !env.TS.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("ts=%v", env.TS)
	}

	var p MessageSendPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ReceiverID != "bob" || p.Content != "hi" {
		t.Fatalf("payload=%+v", p)
	}
}
