// Package memdb is an in-memory db.Store. Every write holds one mutex, so the
// conditional updates behave like their single-statement SQL counterparts.
// It backs unit and end-to-end tests; production runs on PostgreSQL.
package memdb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/entitlement"
)

// ErrClosed is returned by Ping after Close.
var ErrClosed = errors.New("memdb: store closed")

type usageKey struct {
	userID  uuid.UUID
	feature string
	period  string
}

type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*db.User
	sessions map[uuid.UUID]*db.Session
	tokens   map[db.Purpose]map[string]*db.ActionToken
	usage    map[usageKey]*db.UsageRecord
	closed   bool
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*db.User),
		sessions: make(map[uuid.UUID]*db.Session),
		tokens: map[db.Purpose]map[string]*db.ActionToken{
			db.PurposeEmailVerification: {},
			db.PurposePasswordReset:      {},
		},
		usage: make(map[usageKey]*db.UsageRecord),
	}
}

func (s *Store) Users() db.UserStore       { return (*users)(s) }
func (s *Store) Sessions() db.SessionStore { return (*sessions)(s) }
func (s *Store) Tokens() db.TokenStore     { return (*tokens)(s) }
func (s *Store) Usage() db.UsageStore      { return (*usage)(s) }

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ db.Store = (*Store)(nil)

type users Store

func (u *users) Create(ctx context.Context, user *db.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return db.ErrEmailExists
		}
	}
	cp := *user
	u.users[user.ID] = &cp
	return nil
}

func (u *users) GetByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (u *users) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (u *users) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	user.LastLoginAt = &at
	return nil
}

func (u *users) Update(ctx context.Context, id uuid.UUID, upd db.UserUpdate, at time.Time) (*db.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.Tier != nil {
		user.Tier = *upd.Tier
	}
	if upd.IsVerified != nil {
		user.IsVerified = *upd.IsVerified
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	user.UpdatedAt = at
	cp := *user
	return &cp, nil
}

func (u *users) SetTier(ctx context.Context, id uuid.UUID, tier entitlement.Tier, at time.Time) (entitlement.Tier, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return "", db.ErrUserNotFound
	}
	previous := user.Tier
	user.Tier = tier
	user.UpdatedAt = at
	return previous, nil
}

func (u *users) List(ctx context.Context, f db.UserFilter) ([]*db.User, int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []*db.User
	for _, user := range u.users {
		if !f.IncludeInactive && !user.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(user.FullName), search) &&
			!strings.Contains(strings.ToLower(user.Email), search) {
			continue
		}
		if f.Tier != nil && user.Tier != *f.Tier {
			continue
		}
		if f.Verified != nil && user.IsVerified != *f.Verified {
			continue
		}
		cp := *user
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func (u *users) Stats(ctx context.Context, since time.Time) (*db.UserStats, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	stats := &db.UserStats{}
	for _, user := range u.users {
		if !user.IsActive {
			continue
		}
		stats.Total++
		switch user.Tier {
		case entitlement.TierFree:
			stats.Free++
		case entitlement.TierPremium:
			stats.Premium++
		case entitlement.TierProfessional:
			stats.Professional++
		}
		if user.IsVerified {
			stats.Verified++
		}
		if user.LastLoginAt != nil && !user.LastLoginAt.Before(since) {
			stats.RecentlyActive++
		}
		if !user.CreatedAt.Before(since) {
			stats.NewSignups++
		}
	}
	return stats, nil
}

type sessions Store

func (s *sessions) Create(ctx context.Context, session *db.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *sessions) GetActiveByHash(ctx context.Context, hash string, now time.Time) (*db.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.RefreshTokenHash == hash && session.IsActive && session.ExpiresAt.After(now) {
			cp := *session
			return &cp, nil
		}
	}
	return nil, db.ErrSessionNotFound
}

func (s *sessions) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		session.LastUsedAt = at
	}
	return nil
}

func (s *sessions) Revoke(ctx context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.UserID != userID || !session.IsActive {
		return db.ErrSessionNotFound
	}
	session.IsActive = false
	return nil
}

func (s *sessions) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, session := range s.sessions {
		if session.UserID == userID && session.IsActive {
			session.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *sessions) Rotate(ctx context.Context, oldID uuid.UUID, next *db.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.sessions[oldID]
	if !ok || !old.IsActive {
		return db.ErrSessionNotFound
	}
	old.IsActive = false
	cp := *next
	s.sessions[next.ID] = &cp
	return nil
}

func (s *sessions) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*db.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			cp := *session
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type tokens Store

func (t *tokens) table(p db.Purpose) (map[string]*db.ActionToken, error) {
	switch p {
	case db.PurposeEmailVerification, db.PurposePasswordReset:
		return t.tokens[p], nil
	default:
		return nil, db.ErrUnknownPurpose
	}
}

func (t *tokens) Create(ctx context.Context, purpose db.Purpose, token *db.ActionToken) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	table, err := t.table(purpose)
	if err != nil {
		return err
	}
	cp := *token
	table[token.TokenHash] = &cp
	return nil
}

func (t *tokens) Consume(ctx context.Context, purpose db.Purpose, hash string, now time.Time, effect db.Effect) (uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	table, err := t.table(purpose)
	if err != nil {
		return uuid.Nil, err
	}

	token, ok := table[hash]
	if !ok || token.Used || !token.ExpiresAt.After(now) {
		return uuid.Nil, db.ErrTokenNotFound
	}
	user, ok := t.users[token.UserID]
	if !ok || !user.IsActive {
		return uuid.Nil, db.ErrUserNotFound
	}

	switch purpose {
	case db.PurposeEmailVerification:
		user.IsVerified = true
	case db.PurposePasswordReset:
		if effect.PasswordHash == "" {
			return uuid.Nil, db.ErrTokenNotFound
		}
		user.PasswordHash = effect.PasswordHash
	}
	user.UpdatedAt = now

	for _, other := range table {
		if other.UserID == token.UserID {
			other.Used = true
		}
	}
	return token.UserID, nil
}

type usage Store

func (u *usage) Consume(ctx context.Context, userID uuid.UUID, feature, period string, limit int, now time.Time) (int, bool, error) {
	if limit <= 0 {
		return 0, false, nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	key := usageKey{userID: userID, feature: feature, period: period}
	rec, ok := u.usage[key]
	if !ok {
		u.usage[key] = &db.UsageRecord{
			ID:          uuid.New(),
			UserID:      userID,
			FeatureName: feature,
			UsageCount:  1,
			Period:      period,
			LastReset:   now,
		}
		return 1, true, nil
	}
	if rec.UsageCount >= limit {
		return rec.UsageCount, false, nil
	}
	rec.UsageCount++
	return rec.UsageCount, true, nil
}

func (u *usage) ListForPeriod(ctx context.Context, userID uuid.UUID, period string) ([]*db.UsageRecord, error) {
	return u.collect(func(r *db.UsageRecord) bool {
		return r.UserID == userID && r.Period == period
	}), nil
}

func (u *usage) History(ctx context.Context, userID uuid.UUID) ([]*db.UsageRecord, error) {
	return u.collect(func(r *db.UsageRecord) bool { return r.UserID == userID }), nil
}

func (u *usage) collect(keep func(*db.UsageRecord) bool) []*db.UsageRecord {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := []*db.UsageRecord{}
	for _, rec := range u.usage {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period > out[j].Period
		}
		return out[i].FeatureName < out[j].FeatureName
	})
	return out
}
