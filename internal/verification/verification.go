// Package verification issues and redeems single-use email verification and
// password reset tokens. Only token digests are stored.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/metrics"
	"github.com/hireready/backend/internal/opaque"
)

// ErrInvalidToken covers unknown, used and expired tokens alike.
var ErrInvalidToken = errors.New("invalid or expired token")

type Manager struct {
	store db.TokenStore
	now   func() time.Time
}

func NewManager(store db.TokenStore) *Manager {
	return &Manager{store: store, now: time.Now}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue creates a token for userID valid for ttl and returns its plaintext.
// The plaintext is never stored.
func (m *Manager) Issue(ctx context.Context, userID uuid.UUID, purpose db.Purpose, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	plaintext, err := opaque.New()
	if err != nil {
		return "", time.Time{}, err
	}

	now := m.now().UTC()
	token := &db.ActionToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: opaque.Hash(plaintext),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, purpose, token); err != nil {
		return "", time.Time{}, err
	}
	return plaintext, token.ExpiresAt, nil
}

// Redeem consumes the token and applies effect to its owner atomically.
// A token redeems at most once, including under concurrent attempts.
func (m *Manager) Redeem(ctx context.Context, plaintext string, purpose db.Purpose, effect db.Effect) (uuid.UUID, error) {
	if plaintext == "" {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := m.store.Consume(ctx, purpose, opaque.Hash(plaintext), m.now().UTC(), effect)
	switch {
	case errors.Is(err, db.ErrTokenNotFound), errors.Is(err, db.ErrUserNotFound):
		err = ErrInvalidToken
	case err != nil:
		err = fmt.Errorf("redeem %s token: %w", purpose, err)
	}
	metrics.RecordTokenRedemption(string(purpose), err)
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}
