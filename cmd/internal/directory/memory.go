package directory

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-process Directory for dev and tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryDirectory constructs an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[string]Profile)}
}

// Put inserts or replaces a profile.
func (d *MemoryDirectory) Put(p Profile) {
	if p.ID == "" {
		return
	}
	d.mu.Lock()
	d.profiles[p.ID] = p
	d.mu.Unlock()
}

// Lookup implements Directory.
func (d *MemoryDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	d.mu.RLock()
	p, ok := d.profiles[userID]
	d.mu.RUnlock()

	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}
