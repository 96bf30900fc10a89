package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/hireready/backend/internal/db"
	apperrors "github.com/hireready/backend/internal/errors"
	"github.com/hireready/backend/internal/request"
	"github.com/hireready/backend/internal/verification"
)

var (
	passwordRule = validation.By(func(value interface{}) error {
		s, _ := value.(string)
		return ValidatePassword(s)
	})
	nameRule = validation.By(func(value interface{}) error {
		s, _ := value.(string)
		return ValidateName(NormalizeName(s))
	})
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Validate checks the trimmed email; the service normalizes it the same way.
func (r RegisterRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, passwordRule),
		validation.Field(&r.FullName, validation.Required, nameRule),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type TokenRequest struct {
	Token string `json:"token"`
}

func (r TokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

type EmailRequest struct {
	Email string `json:"email"`
}

func (r EmailRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, passwordRule),
	)
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SessionInfo struct {
	ID         string    `json:"id"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsActive   bool      `json:"is_active"`
}

type Handlers struct {
	authService *Service
}

func NewHandlers(authService *Service) *Handlers {
	return &Handlers{authService: authService}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) error {
	var req RegisterRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	resp, err := h.authService.Register(r.Context(), RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, resp)
	return nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	resp, err := h.authService.Login(r.Context(), req.Email, req.Password, r.UserAgent())
	if err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, resp)
	return nil
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	var req RefreshRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	resp, err := h.authService.Refresh(r.Context(), req.RefreshToken, r.UserAgent())
	if err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, resp)
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	if err := h.authService.Logout(r.Context(), userCtx.UserID); err != nil {
		return MapError(err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	user, err := h.authService.CurrentUser(r.Context(), userCtx.UserID)
	if err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, h.authService.UserInfo(user))
	return nil
}

func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) error {
	var req TokenRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	if err := h.authService.VerifyEmail(r.Context(), req.Token); err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, MessageResponse{Message: "email verified"})
	return nil
}

func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) error {
	var req EmailRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	h.authService.ResendVerification(r.Context(), req.Email)

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, MessageResponse{
		Message: "if the account exists and is unverified, a verification email has been sent",
	})
	return nil
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	var req EmailRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	h.authService.ForgotPassword(r.Context(), req.Email)

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, MessageResponse{
		Message: "if the account exists, a password reset email has been sent",
	})
	return nil
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var req ResetPasswordRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, MessageResponse{Message: "password updated"})
	return nil
}

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	sessions, err := h.authService.Sessions(r.Context(), userCtx.UserID)
	if err != nil {
		return MapError(err)
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			ID:         s.ID.String(),
			UserAgent:  s.UserAgent,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			ExpiresAt:  s.ExpiresAt,
			IsActive:   s.IsActive,
		})
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]any{"sessions": out})
	return nil
}

func (h *Handlers) RevokeSession(w http.ResponseWriter, r *http.Request) error {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized()
	}

	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.NotFound("session")
	}

	if err := h.authService.RevokeSession(r.Context(), userCtx.UserID, sessionID); err != nil {
		return MapError(err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// MapError converts auth, token and store failures into API errors.
func MapError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ErrWeakPassword):
		return apperrors.FieldErrors(map[string]string{"password": err.Error()})
	case errors.Is(err, ErrInvalidName):
		return apperrors.FieldErrors(map[string]string{"full_name": err.Error()})
	case errors.Is(err, db.ErrEmailExists):
		return apperrors.EmailExists()
	case errors.Is(err, ErrInvalidCredentials):
		return apperrors.InvalidCredentials()
	case errors.Is(err, ErrInvalidToken):
		return apperrors.Unauthorized()
	case errors.Is(err, verification.ErrInvalidToken):
		return apperrors.InvalidToken()
	case errors.Is(err, db.ErrSessionNotFound):
		return apperrors.NotFound("session")
	case errors.Is(err, db.ErrUserNotFound):
		return apperrors.NotFound("user")
	default:
		return apperrors.InternalError("an unexpected error occurred").WithCause(err)
	}
}
