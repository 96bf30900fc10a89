package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/entitlement"
	"github.com/hireready/backend/internal/logger"
	"github.com/hireready/backend/internal/metrics"
	"github.com/hireready/backend/internal/notify"
	"github.com/hireready/backend/internal/verification"
)

// ErrInvalidCredentials is returned for unknown emails, wrong passwords and
// deactivated accounts alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// MaxListedSessions caps GET /auth/sessions.
const MaxListedSessions = 20

type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	User         *UserInfo `json:"user"`
}

type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type UserInfo struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	FullName    string           `json:"full_name"`
	Tier        entitlement.Tier `json:"tier"`
	IsVerified  bool             `json:"is_verified"`
	IsAdmin     bool             `json:"is_admin"`
	CreatedAt   time.Time        `json:"created_at"`
	LastLoginAt *time.Time       `json:"last_login_at,omitempty"`
}

// ServiceConfig holds the policy knobs of the auth service.
type ServiceConfig struct {
	RefreshRotation      bool
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	AdminEmailDomain     string
}

type Service struct {
	users    db.UserStore
	hasher   PasswordHasher
	issuer   *Issuer
	sessions *Sessions
	tokens   *verification.Manager
	notifier notify.Notifier
	cfg      ServiceConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewService(
	store db.Store,
	hasher PasswordHasher,
	issuer *Issuer,
	tokens *verification.Manager,
	notifier notify.Notifier,
	cfg ServiceConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		users:    store.Users(),
		hasher:   hasher,
		issuer:   issuer,
		sessions: NewSessions(store.Sessions(), issuer),
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		log:      log.WithComponent("auth"),
		now:      time.Now,
	}
}

// WithClock replaces the time source of the service and its session registry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.sessions.now = now
	return s
}

func (s *Service) Issuer() *Issuer { return s.issuer }

func (s *Service) UserInfo(u *db.User) *UserInfo {
	return &UserInfo{
		ID:          u.ID.String(),
		Email:       u.Email,
		FullName:    u.FullName,
		Tier:        u.Tier,
		IsVerified:  u.IsVerified,
		IsAdmin:     u.HasAdminAccess(s.cfg.AdminEmailDomain),
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FullName  string
	UserAgent string
}

// Register creates a Free, unverified account, sends a verification token
// and opens the first session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (resp *AuthResponse, err error) {
	defer func() { metrics.RecordAuthAttempt("register", err) }()

	email := NormalizeEmail(in.Email)
	name := NormalizeName(in.FullName)
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &db.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FullName:     name,
		Tier:         entitlement.TierFree,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", map[string]interface{}{"user_id": user.ID.String()})
	s.sendToken(ctx, user, db.PurposeEmailVerification)

	return s.startSession(ctx, user, in.UserAgent)
}

// Login checks credentials. Unknown emails still pay for a bcrypt comparison.
func (s *Service) Login(ctx context.Context, email, password, userAgent string) (resp *AuthResponse, err error) {
	defer func() { metrics.RecordAuthAttempt("login", err) }()

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			if _, err := s.hasher.Compare(ctx, "", password); err != nil {
				return nil, err
			}
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return s.startSession(ctx, user, userAgent)
}

func (s *Service) startSession(ctx context.Context, user *db.User, userAgent string) (*AuthResponse, error) {
	access, _, err := s.issuer.IssueAccessToken(user.ID)
	if err != nil {
		return nil, err
	}

	refresh, err := s.sessions.Record(ctx, user.ID, userAgent)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
		User:         s.UserInfo(user),
	}, nil
}

// Refresh exchanges a refresh token for a new access token, rotating the
// refresh token when rotation is enabled.
func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent string) (resp *RefreshResponse, err error) {
	defer func() { metrics.RecordAuthAttempt("refresh", err) }()

	session, err := s.sessions.Resolve(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	access, _, err := s.issuer.IssueAccessToken(user.ID)
	if err != nil {
		return nil, err
	}

	resp = &RefreshResponse{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(s.issuer.AccessTTL().Seconds()),
	}
	if s.cfg.RefreshRotation {
		if resp.RefreshToken, err = s.sessions.Rotate(ctx, session, userAgent); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Logout revokes every session of the user.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.activeUser(ctx, userID); err != nil {
		return err
	}
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "user logged out", map[string]interface{}{"user_id": userID.String(), "sessions": n})
	return nil
}

// CurrentUser loads the authenticated user. Deleted or deactivated accounts
// are treated as an invalid token.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*db.User, error) {
	return s.activeUser(ctx, userID)
}

func (s *Service) activeUser(ctx context.Context, userID uuid.UUID) (*db.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.Redeem(ctx, token, db.PurposeEmailVerification, db.Effect{})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "email verified", map[string]interface{}{"user_id": userID.String()})
	return nil
}

// ResendVerification issues a fresh verification token when the account
// exists, is active and is unverified. The caller always sees success.
func (s *Service) ResendVerification(ctx context.Context, email string) {
	user, ok := s.lookupForEmail(ctx, email)
	if !ok || user.IsVerified {
		return
	}
	s.sendToken(ctx, user, db.PurposeEmailVerification)
}

// ForgotPassword issues a reset token for an active account. The caller
// always sees success.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	user, ok := s.lookupForEmail(ctx, email)
	if !ok {
		return
	}
	s.sendToken(ctx, user, db.PurposePasswordReset)
}

// ResetPassword redeems a reset token, sets the new password and signs the
// user out everywhere.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}

	userID, err := s.tokens.Redeem(ctx, token, db.PurposePasswordReset, db.Effect{PasswordHash: hash})
	if err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions after reset: %w", err)
	}
	s.log.Info(ctx, "password reset", map[string]interface{}{"user_id": userID.String()})
	return nil
}

func (s *Service) Sessions(ctx context.Context, userID uuid.UUID) ([]*db.Session, error) {
	if _, err := s.activeUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.sessions.List(ctx, userID, MaxListedSessions)
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	if _, err := s.activeUser(ctx, userID); err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, userID, sessionID)
}

func (s *Service) lookupForEmail(ctx context.Context, email string) (*db.User, bool) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			s.log.Error(ctx, "user lookup failed", err)
		}
		return nil, false
	}
	return user, user.IsActive
}

// sendToken issues a single-use token and hands it to the notifier. Failures
// are logged; the triggering request still succeeds.
func (s *Service) sendToken(ctx context.Context, user *db.User, purpose db.Purpose) {
	ttl, kind := s.cfg.VerificationTokenTTL, notify.KindEmailVerification
	if purpose == db.PurposePasswordReset {
		ttl, kind = s.cfg.ResetTokenTTL, notify.KindPasswordReset
	}

	token, expiresAt, err := s.tokens.Issue(ctx, user.ID, purpose, ttl)
	if err != nil {
		s.log.Error(ctx, "failed to issue token", err, map[string]interface{}{
			"user_id": user.ID.String(),
			"purpose": string(purpose),
		})
		return
	}

	err = s.notifier.Notify(ctx, notify.Message{
		Kind:      kind,
		UserID:    user.ID.String(),
		Email:     user.Email,
		FullName:  user.FullName,
		Token:     token,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.log.Error(ctx, "failed to hand off email", err, map[string]interface{}{
			"user_id": user.ID.String(),
			"purpose": string(purpose),
		})
	}
}
