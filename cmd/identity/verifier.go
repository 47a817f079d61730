// Package identity is the boundary to the external identity provider.
//
// Pulse never issues or refreshes credentials itself; it only turns a bearer
// token into a trusted user id. Both entry channels resolve the sender through
// this package, so a client-supplied sender id is never trusted.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned for missing, malformed, or expired tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier resolves a bearer token to a trusted user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}
