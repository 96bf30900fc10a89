package db

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/entitlement"
)

type User struct {
	ID                uuid.UUID        `db:"id"`
	Email             string           `db:"email"`
	PasswordHash      string           `db:"password_hash"`
	FullName          string           `db:"full_name"`
	Tier              entitlement.Tier `db:"tier"`
	IsVerified        bool             `db:"is_verified"`
	IsActive          bool             `db:"is_active"`
	IsAdmin           bool             `db:"is_admin"`
	BillingCustomerID *string          `db:"billing_customer_id"`
	CreatedAt         time.Time        `db:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
	LastLoginAt       *time.Time       `db:"last_login_at"`
}

// HasAdminAccess reports whether u may use the admin operations. When
// adminDomain is set, every active user with an email in that domain qualifies.
func (u *User) HasAdminAccess(adminDomain string) bool {
	if !u.IsActive {
		return false
	}
	if u.IsAdmin {
		return true
	}
	return adminDomain != "" && strings.HasSuffix(strings.ToLower(u.Email), "@"+adminDomain)
}

// UserUpdate carries the admin-editable fields. Nil fields are left unchanged.
type UserUpdate struct {
	FullName   *string
	Tier       *entitlement.Tier
	IsVerified *bool
	IsActive   *bool
}

// Empty reports whether the update would change nothing.
func (u UserUpdate) Empty() bool {
	return u.FullName == nil && u.Tier == nil && u.IsVerified == nil && u.IsActive == nil
}

// UserFilter narrows an admin user listing. Page is 1-based.
type UserFilter struct {
	Search          string
	Tier            *entitlement.Tier
	Verified        *bool
	IncludeInactive bool
	Page            int
	Limit           int
}

// Offset returns the number of rows to skip for the filter's page.
func (f UserFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// UserStats aggregates active users for the admin dashboard.
type UserStats struct {
	Total          int `db:"total"`
	Free           int `db:"free"`
	Premium        int `db:"premium"`
	Professional   int `db:"professional"`
	Verified       int `db:"verified"`
	RecentlyActive int `db:"recently_active"`
	NewSignups     int `db:"new_signups"`
}

type Session struct {
	ID               uuid.UUID `db:"id"`
	UserID           uuid.UUID `db:"user_id"`
	RefreshTokenHash string    `db:"refresh_token_hash"`
	UserAgent        string    `db:"user_agent"`
	ExpiresAt        time.Time `db:"expires_at"`
	CreatedAt        time.Time `db:"created_at"`
	LastUsedAt       time.Time `db:"last_used_at"`
	IsActive         bool      `db:"is_active"`
}

// Purpose selects which single-use token table a token lives in.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// ActionToken is a single-use verification or reset token.
type ActionToken struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	CreatedAt time.Time `db:"created_at"`
}

// Effect is applied to the token's owner when a token is consumed.
type Effect struct {
	// PasswordHash is the new hash for password_reset tokens.
	PasswordHash string
}

type UsageRecord struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	FeatureName string    `db:"feature_name"`
	UsageCount  int       `db:"usage_count"`
	Period      string    `db:"period"`
	LastReset   time.Time `db:"last_reset"`
}

// PeriodFormat is the layout of a usage period key.
const PeriodFormat = "2006-01"

// PeriodOf returns the UTC calendar month containing t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format(PeriodFormat)
}
