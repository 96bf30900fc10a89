// Package admin implements operator oversight of user accounts: dashboard
// statistics, listing, inspection, edits, soft deletion and tier changes.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/auth"
	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/entitlement"
	"github.com/hireready/backend/internal/logger"
)

const (
	StatsCacheKey = "stats:admin"
	StatsCacheTTL = 30 * time.Second

	DefaultPageSize = 50
	MaxPageSize     = 100

	RecentSessionLimit = 10

	activityWindow = 30 * 24 * time.Hour
)

var (
	ErrNotAdmin       = errors.New("admin access required")
	ErrEmptyUpdate    = errors.New("no fields to update")
	ErrSelfDeactivate = errors.New("admins cannot deactivate their own account")
	ErrSelfDelete     = errors.New("admins cannot delete their own account")
)

// FieldError rejects one input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// StatsCache stores the dashboard statistics between recomputations.
type StatsCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Stats struct {
	TotalUsers           int     `json:"total_users"`
	FreeUsers            int     `json:"free_users"`
	PremiumUsers         int     `json:"premium_users"`
	ProfessionalUsers    int     `json:"professional_users"`
	VerifiedUsers        int     `json:"verified_users"`
	ActiveUsers          int     `json:"active_users"`
	MonthlySignups       int     `json:"monthly_signups"`
	RevenueEstimate      float64 `json:"revenue_estimate"`
	RevenueEstimateCents int     `json:"revenue_estimate_cents"`
}

type UserSummary struct {
	ID                string           `json:"user_id"`
	Email             string           `json:"email"`
	FullName          string           `json:"full_name"`
	Tier              entitlement.Tier `json:"tier"`
	IsVerified        bool             `json:"is_verified"`
	IsActive          bool             `json:"is_active"`
	IsAdmin           bool             `json:"is_admin"`
	CreatedAt         time.Time        `json:"created_at"`
	LastLoginAt       *time.Time       `json:"last_login,omitempty"`
	BillingCustomerID *string          `json:"billing_customer_id,omitempty"`
}

type UserPage struct {
	Users []UserSummary `json:"users"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}

type UsageEntry struct {
	Feature string `json:"feature"`
	Count   int    `json:"count"`
	Period  string `json:"month"`
}

type SessionSummary struct {
	ID         string    `json:"id"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsActive   bool      `json:"is_active"`
}

type UserDetail struct {
	User           UserSummary      `json:"user"`
	Usage          []UsageEntry     `json:"usage_statistics"`
	RecentSessions []SessionSummary `json:"recent_sessions"`
}

type TierChange struct {
	UserID  string           `json:"user_id"`
	OldTier entitlement.Tier `json:"old_tier"`
	NewTier entitlement.Tier `json:"new_tier"`
}

// ListParams are the raw listing filters. Zero Page and Limit take defaults.
type ListParams struct {
	Page     int
	Limit    int
	Search   string
	Tier     string
	Verified *bool
}

// UpdateInput holds the editable fields; nil leaves a field unchanged.
type UpdateInput struct {
	FullName   *string
	Tier       *string
	IsVerified *bool
	IsActive   *bool
}

type Service struct {
	users       db.UserStore
	sessions    db.SessionStore
	usage       db.UsageStore
	cache       StatsCache
	adminDomain string
	log         *logger.Logger
	now         func() time.Time
}

// NewService builds the admin service. cache may be nil, in which case
// statistics are computed on every request.
func NewService(store db.Store, cache StatsCache, adminDomain string, log *logger.Logger) *Service {
	return &Service{
		users:       store.Users(),
		sessions:    store.Sessions(),
		usage:       store.Usage(),
		cache:       cache,
		adminDomain: adminDomain,
		log:         log.WithComponent("admin"),
		now:         time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Authorize returns the acting user if they hold admin access.
func (s *Service) Authorize(ctx context.Context, userID uuid.UUID) (*db.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, auth.ErrInvalidToken
	}
	if !user.HasAdminAccess(s.adminDomain) {
		return nil, ErrNotAdmin
	}
	return user, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if s.cache != nil {
		var cached Stats
		hit, err := s.cache.GetJSON(ctx, StatsCacheKey, &cached)
		if err != nil {
			s.log.Warn(ctx, "stats cache read failed", map[string]interface{}{"error": err.Error()})
		} else if hit {
			return &cached, nil
		}
	}

	raw, err := s.users.Stats(ctx, s.now().UTC().Add(-activityWindow))
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalUsers:        raw.Total,
		FreeUsers:         raw.Free,
		PremiumUsers:      raw.Premium,
		ProfessionalUsers: raw.Professional,
		VerifiedUsers:     raw.Verified,
		ActiveUsers:       raw.RecentlyActive,
		MonthlySignups:    raw.NewSignups,
	}
	stats.RevenueEstimateCents = raw.Premium*monthlyPrice(entitlement.TierPremium) +
		raw.Professional*monthlyPrice(entitlement.TierProfessional)
	stats.RevenueEstimate = float64(stats.RevenueEstimateCents) / 100

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, StatsCacheKey, stats, StatsCacheTTL); err != nil {
			s.log.Warn(ctx, "stats cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return stats, nil
}

func monthlyPrice(t entitlement.Tier) int {
	e, _ := entitlement.Resolve(t)
	return e.MonthlyPriceCents
}

func (s *Service) List(ctx context.Context, p ListParams) (*UserPage, error) {
	filter := db.UserFilter{
		Search:   p.Search,
		Verified: p.Verified,
		Page:     p.Page,
		Limit:    p.Limit,
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Page < 1 {
		return nil, &FieldError{Field: "page", Reason: "must be at least 1"}
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit < 1 || filter.Limit > MaxPageSize {
		return nil, &FieldError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxPageSize)}
	}
	if p.Tier != "" {
		tier, err := entitlement.ParseTier(p.Tier)
		if err != nil {
			return nil, &FieldError{Field: "tier", Reason: err.Error()}
		}
		filter.Tier = &tier
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &UserPage{Users: make([]UserSummary, 0, len(users)), Page: filter.Page, Limit: filter.Limit, Total: total}
	for _, u := range users {
		page.Users = append(page.Users, s.summary(u))
	}
	return page, nil
}

func (s *Service) Detail(ctx context.Context, userID uuid.UUID) (*UserDetail, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.usage.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListForUser(ctx, userID, RecentSessionLimit)
	if err != nil {
		return nil, err
	}

	detail := &UserDetail{
		User:           s.summary(user),
		Usage:          make([]UsageEntry, 0, len(history)),
		RecentSessions: make([]SessionSummary, 0, len(sessions)),
	}
	for _, r := range history {
		detail.Usage = append(detail.Usage, UsageEntry{Feature: r.FeatureName, Count: r.UsageCount, Period: r.Period})
	}
	for _, ss := range sessions {
		detail.RecentSessions = append(detail.RecentSessions, SessionSummary{
			ID:         ss.ID.String(),
			UserAgent:  ss.UserAgent,
			CreatedAt:  ss.CreatedAt,
			LastUsedAt: ss.LastUsedAt,
			ExpiresAt:  ss.ExpiresAt,
			IsActive:   ss.IsActive,
		})
	}
	return detail, nil
}

// Update applies an admin edit. Deactivating an account also revokes its
// sessions.
func (s *Service) Update(ctx context.Context, actorID, userID uuid.UUID, in UpdateInput) (*UserSummary, error) {
	var upd db.UserUpdate
	if in.FullName != nil {
		name := auth.NormalizeName(*in.FullName)
		if err := auth.ValidateName(name); err != nil {
			return nil, &FieldError{Field: "full_name", Reason: err.Error()}
		}
		upd.FullName = &name
	}
	if in.Tier != nil {
		tier, err := entitlement.ParseTier(*in.Tier)
		if err != nil {
			return nil, &FieldError{Field: "tier", Reason: err.Error()}
		}
		upd.Tier = &tier
	}
	upd.IsVerified = in.IsVerified
	upd.IsActive = in.IsActive

	if upd.Empty() {
		return nil, ErrEmptyUpdate
	}
	if upd.IsActive != nil && !*upd.IsActive && actorID == userID {
		return nil, ErrSelfDeactivate
	}

	user, err := s.users.Update(ctx, userID, upd, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		if _, err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
	}

	s.invalidateStats(ctx)
	s.log.Info(ctx, "user updated by admin", map[string]interface{}{
		"admin_id": actorID.String(),
		"user_id":  userID.String(),
	})

	summary := s.summary(user)
	return &summary, nil
}

// Delete soft-deletes an account and revokes every session it holds.
func (s *Service) Delete(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return ErrSelfDelete
	}

	inactive := false
	if _, err := s.users.Update(ctx, userID, db.UserUpdate{IsActive: &inactive}, s.now().UTC()); err != nil {
		return err
	}
	revoked, err := s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	s.invalidateStats(ctx)
	s.log.Info(ctx, "user deleted by admin", map[string]interface{}{
		"admin_id": actorID.String(),
		"user_id":  userID.String(),
		"sessions": revoked,
	})
	return nil
}

// ChangeTier moves a user to tier. Billing collaborators call it after a
// subscription change.
func (s *Service) ChangeTier(ctx context.Context, userID uuid.UUID, tier entitlement.Tier) (*TierChange, error) {
	if !tier.Valid() {
		return nil, &FieldError{Field: "tier", Reason: entitlement.ErrUnknownTier.Error()}
	}

	old, err := s.users.SetTier(ctx, userID, tier, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.log.Info(ctx, "user tier changed", map[string]interface{}{
		"user_id":  userID.String(),
		"old_tier": old.String(),
		"new_tier": tier.String(),
	})
	return &TierChange{UserID: userID.String(), OldTier: old, NewTier: tier}, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, StatsCacheKey); err != nil {
		s.log.Warn(ctx, "stats cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) summary(u *db.User) UserSummary {
	return UserSummary{
		ID:                u.ID.String(),
		Email:             u.Email,
		FullName:          u.FullName,
		Tier:              u.Tier,
		IsVerified:        u.IsVerified,
		IsActive:          u.IsActive,
		IsAdmin:           u.HasAdminAccess(s.adminDomain),
		CreatedAt:         u.CreatedAt,
		LastLoginAt:       u.LastLoginAt,
		BillingCustomerID: u.BillingCustomerID,
	}
}
