package identity

import (
	"context"
	"strings"
)

// StaticVerifier maps fixed tokens to user ids. Dev and test use only.
type StaticVerifier map[string]string

// Verify implements Verifier.
func (v StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	userID, ok := v[strings.TrimSpace(token)]
	if !ok || userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// ParseStaticTokens parses "token:user,token2:user2" pairs (dev config format).
func ParseStaticTokens(raw string) StaticVerifier {
	out := make(StaticVerifier)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		token, userID, ok := strings.Cut(part, ":")
		token = strings.TrimSpace(token)
		userID = strings.TrimSpace(userID)
		if !ok || token == "" || userID == "" {
			continue
		}
		out[token] = userID
	}
	return out
}
