package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/opaque"
)

// Sessions records refresh tokens by digest and resolves them back to sessions.
type Sessions struct {
	store  db.SessionStore
	issuer *Issuer
	now    func() time.Time
}

func NewSessions(store db.SessionStore, issuer *Issuer) *Sessions {
	return &Sessions{store: store, issuer: issuer, now: time.Now}
}

func (s *Sessions) newSession(userID uuid.UUID, userAgent string) (*db.Session, string, error) {
	token, expiresAt, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	return &db.Session{
		ID:               uuid.New(),
		UserID:           userID,
		RefreshTokenHash: opaque.Hash(token),
		UserAgent:        truncate(userAgent, 512),
		ExpiresAt:        expiresAt.UTC(),
		CreatedAt:        now,
		LastUsedAt:       now,
		IsActive:         true,
	}, token, nil
}

// Record opens a session for userID and returns the plaintext refresh token.
func (s *Sessions) Record(ctx context.Context, userID uuid.UUID, userAgent string) (string, error) {
	session, token, err := s.newSession(userID, userAgent)
	if err != nil {
		return "", err
	}
	if err := s.store.Create(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the active, unexpired session for refreshToken.
func (s *Sessions) Resolve(ctx context.Context, refreshToken string) (*db.Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	now := s.now().UTC()
	session, err := s.store.GetActiveByHash(ctx, opaque.Hash(refreshToken), now)
	if err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := s.store.Touch(ctx, session.ID, now); err != nil {
		return nil, err
	}
	session.LastUsedAt = now
	return session, nil
}

// Rotate retires old and opens a replacement. Only one concurrent rotation
// of the same session succeeds.
func (s *Sessions) Rotate(ctx context.Context, old *db.Session, userAgent string) (string, error) {
	next, token, err := s.newSession(old.UserID, userAgent)
	if err != nil {
		return "", err
	}
	if err := s.store.Rotate(ctx, old.ID, next); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return token, nil
}

func (s *Sessions) Revoke(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.store.Revoke(ctx, userID, sessionID)
}

func (s *Sessions) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.RevokeAllForUser(ctx, userID)
}

func (s *Sessions) List(ctx context.Context, userID uuid.UUID, limit int) ([]*db.Session, error) {
	return s.store.ListForUser(ctx, userID, limit)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
