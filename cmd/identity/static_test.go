package identity

import (
	"context"
	"testing"
)

func TestParseStaticTokens(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "single", raw: "tok:alice", want: map[string]string{"tok": "alice"}},
		{
			name: "multiple with spaces",
			raw:  " t1:alice , t2:bob ",
			want: map[string]string{"t1": "alice", "t2": "bob"},
		},
		{name: "malformed entries skipped", raw: "bare,:nouser,notok:,t:u", want: map[string]string{"t": "u"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParseStaticTokens(tc.raw)
			if len(got) != len(tc.want) {
				t.Fatalf("len=%d want=%d (%v)", len(got), len(tc.want), got)
			}
			for token, userID := range tc.want {
				if got[token] != userID {
					t.Fatalf("got[%q]=%q want=%q", token, got[token], userID)
				}
			}
		})
	}
}

func TestStaticVerifier_Verify(t *testing.T) {
	t.Parallel()

	v := StaticVerifier{"tok": "alice"}
	ctx := context.Background()

	userID, err := v.Verify(ctx, " tok ")
	if err != nil || userID != "alice" {
		t.Fatalf("Verify=%q,%v want alice,nil", userID, err)
	}

	if _, err := v.Verify(ctx, "unknown"); err == nil {
		t.Fatal("unknown token accepted")
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := NormalizeUsername("  Alice "); got != "alice" {
		t.Fatalf("NormalizeUsername=%q", got)
	}
	if got := NormalizeEmail(" Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("NormalizeEmail=%q", got)
	}
}
