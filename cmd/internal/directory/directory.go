// Package directory is the user-directory collaborator boundary: profile
// lookups by id. The messaging core only reads profiles, never writes them.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no profile exists for the given id.
// Callers degrade gracefully (null profile) instead of failing.
var ErrNotFound = errors.New("profile not found")

// Profile is the public subset of a user's directory entry.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Directory looks up profiles by user id.
type Directory interface {
	Lookup(ctx context.Context, userID string) (Profile, error)
}
