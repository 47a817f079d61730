// Package otp is the registration boundary: an explicit expiring cache of
// one-time passcodes keyed by email, plus the mail-sending collaborator.
//
// It deliberately lives outside the messaging core. Account creation from a
// redeemed pending profile belongs to the external identity provider.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulse/cmd/identity"
)

// Sentinel errors for redeem outcomes.
var (
	ErrNotFound = errors.New("no pending code for email")
	ErrExpired  = errors.New("code expired")
	ErrMismatch = errors.New("code mismatch")
)

const codeDigits = 6

// PendingProfile is the profile captured at registration time, held until the
// emailed code is redeemed. The password is stored only as an Argon2id hash.
type PendingProfile struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
}

type entry struct {
	code      string
	expiresAt time.Time
	pending   PendingProfile
}

// Store is a concurrent expiring cache email -> {code, expiry, pendingProfile}.
//
// Reads are TTL-checked; a background janitor sweeps expired entries so
// abandoned registrations do not accumulate.
type Store struct {
	log    *slog.Logger
	ttl    time.Duration
	sender Sender

	mu      sync.Mutex
	entries map[string]entry

	done chan struct{}
	once sync.Once
}

// NewStore constructs the cache and starts its janitor.
func NewStore(log *slog.Logger, ttl time.Duration, sender Sender) *Store {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if sender == nil {
		sender = NoopSender{}
	}

	s := &Store{
		log:     log,
		ttl:     ttl,
		sender:  sender,
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Close stops the janitor (idempotent).
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

// Issue generates a fresh code for the pending profile, replaces any previous
// code for the same email, and hands it to the mail sender.
func (s *Store) Issue(ctx context.Context, pending PendingProfile) error {
	email := identity.NormalizeEmail(pending.Email)
	if email == "" {
		return fmt.Errorf("otp: empty email")
	}
	if pending.ID == "" {
		pending.ID = uuid.NewString()
	}
	pending.Email = email

	code, err := newCode()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.entries[email] = entry{
		code:      code,
		expiresAt: now.Add(s.ttl),
		pending:   pending,
	}
	s.mu.Unlock()

	if err := s.sender.SendCode(ctx, email, code); err != nil {
		return fmt.Errorf("otp: send code: %w", err)
	}

	s.log.Info("otp.issue", "email", email, "pending_id", pending.ID)
	return nil
}

// Redeem validates the code for email and, on success, removes and returns the
// pending profile. An expired entry is deleted on the spot; a mismatched code
// leaves it untouched so a late-arriving correct code still works within the TTL.
func (s *Store) Redeem(email, code string) (PendingProfile, error) {
	email = identity.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[email]
	if !ok {
		return PendingProfile{}, ErrNotFound
	}
	if time.Now().UTC().After(e.expiresAt) {
		delete(s.entries, email)
		return PendingProfile{}, ErrExpired
	}
	if e.code != code {
		return PendingProfile{}, ErrMismatch
	}

	delete(s.entries, email)
	return e.pending, nil
}

// Len reports the number of live (possibly expired, not yet swept) entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) janitor() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			now := time.Now().UTC()
			s.mu.Lock()
			for email, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, email)
				}
			}
			s.mu.Unlock()
		}
	}
}

// newCode returns a zero-padded numeric code with uniform distribution.
func newCode() (string, error) {
	maxExclusive := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		maxExclusive.Mul(maxExclusive, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, maxExclusive)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
