package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload the identity provider signs for Pulse.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// HMACVerifier validates HS256-signed bearer tokens issued by the identity provider.
type HMACVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier constructs a Verifier for HS256 tokens.
// An empty issuer disables issuer checking.
func NewHMACVerifier(secret []byte, issuer string) (*HMACVerifier, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("identity: empty HMAC secret")
	}
	return &HMACVerifier{secret: secret, issuer: issuer}, nil
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthenticated
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return time.Now().UTC() }))
	if err != nil || !parsed.Valid {
		return "", ErrUnauthenticated
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", ErrUnauthenticated
	}

	// Prefer the explicit user_id claim; fall back to the registered subject.
	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
