package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/entitlement"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrTokenNotFound   = errors.New("token not found")
	ErrUnknownPurpose  = errors.New("unknown token purpose")
)

type UserStore interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Update(ctx context.Context, id uuid.UUID, upd UserUpdate, at time.Time) (*User, error)
	// SetTier changes the tier and returns the tier it replaced.
	SetTier(ctx context.Context, id uuid.UUID, tier entitlement.Tier, at time.Time) (entitlement.Tier, error)
	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
	Stats(ctx context.Context, since time.Time) (*UserStats, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	// GetActiveByHash returns the session only if it is active and unexpired at now.
	GetActiveByHash(ctx context.Context, hash string, now time.Time) (*Session, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, userID, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// Rotate deactivates old and records next atomically. It fails with
	// ErrSessionNotFound if old was already inactive.
	Rotate(ctx context.Context, oldID uuid.UUID, next *Session) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Session, error)
}

type TokenStore interface {
	Create(ctx context.Context, purpose Purpose, token *ActionToken) error
	// Consume marks the token used and applies effect to its owner in one
	// transaction. Unknown, used and expired tokens yield ErrTokenNotFound.
	Consume(ctx context.Context, purpose Purpose, hash string, now time.Time, effect Effect) (uuid.UUID, error)
}

type UsageStore interface {
	// Consume increments the counter for (user, feature, period) only while it
	// is below limit. It reports the new count and whether the use was allowed.
	Consume(ctx context.Context, userID uuid.UUID, feature, period string, limit int, now time.Time) (int, bool, error)
	ListForPeriod(ctx context.Context, userID uuid.UUID, period string) ([]*UsageRecord, error)
	History(ctx context.Context, userID uuid.UUID) ([]*UsageRecord, error)
}

// Store is the persistence boundary for the identity core.
type Store interface {
	Users() UserStore
	Sessions() SessionStore
	Tokens() TokenStore
	Usage() UsageStore
	Ping(ctx context.Context) error
	Close() error
}
