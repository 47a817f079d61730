package directory

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryDirectory_PutLookup(t *testing.T) {
	t.Parallel()

	d := NewMemoryDirectory()
	ctx := context.Background()

	if _, err := d.Lookup(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}

	d.Put(Profile{ID: "alice", Username: "alice", DisplayName: "Alice"})
	d.Put(Profile{}) // no id, ignored

	p, err := d.Lookup(ctx, "alice")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Username != "alice" || p.DisplayName != "Alice" {
		t.Fatalf("profile=%+v", p)
	}

	// Replace semantics.
	d.Put(Profile{ID: "alice", Username: "alice", DisplayName: "Alice B."})
	p, _ = d.Lookup(ctx, "alice")
	if p.DisplayName != "Alice B." {
		t.Fatalf("profile not replaced: %+v", p)
	}
}

func TestMemoryDirectory_ContextCancelled(t *testing.T) {
	t.Parallel()

	d := NewMemoryDirectory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Lookup(ctx, "alice"); err == nil {
		t.Fatal("cancelled context accepted")
	}
}
