package admin

import (
	"errors"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/hireready/backend/internal/auth"
	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/entitlement"
	apperrors "github.com/hireready/backend/internal/errors"
	"github.com/hireready/backend/internal/request"
)

type UpdateUserRequest struct {
	FullName   *string `json:"full_name"`
	Tier       *string `json:"tier"`
	IsVerified *bool   `json:"is_verified"`
	IsActive   *bool   `json:"is_active"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.NilOrNotEmpty),
		validation.Field(&r.Tier, validation.NilOrNotEmpty),
	)
}

type ChangeTierRequest struct {
	Tier string `json:"tier"`
}

func (r ChangeTierRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Tier, validation.Required),
	)
}

type TierChangeResponse struct {
	Message string `json:"message"`
	*TierChange
}

type Handlers struct {
	admin   *Service
	onError func(*http.Request, *apperrors.AppError)
}

// NewHandlers builds the admin handlers. onError, when non-nil, sees every
// error RequireAdmin writes.
func NewHandlers(admin *Service, onError func(*http.Request, *apperrors.AppError)) *Handlers {
	return &Handlers{admin: admin, onError: onError}
}

// RequireAdmin runs after auth.Middleware and rejects callers without admin
// access.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return apperrors.HandleFunc(func(w http.ResponseWriter, r *http.Request) error {
		userCtx := auth.GetUserFromContext(r.Context())
		if userCtx == nil {
			return apperrors.Unauthorized()
		}
		if _, err := h.admin.Authorize(r.Context(), userCtx.UserID); err != nil {
			return MapError(err)
		}
		next.ServeHTTP(w, r)
		return nil
	}, h.onError)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		return MapError(err)
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, stats)
	return nil
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	params := ListParams{
		Search: q.Get("search"),
		Tier:   q.Get("tier"),
	}

	fields := map[string]string{}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["page"] = "must be an integer"
		}
		params.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["limit"] = "must be an integer"
		}
		params.Limit = n
	}
	if v := q.Get("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fields["verified"] = "must be true or false"
		}
		params.Verified = &b
	}
	if len(fields) > 0 {
		return apperrors.FieldErrors(fields)
	}

	page, err := h.admin.List(r.Context(), params)
	if err != nil {
		return MapError(err)
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, page)
	return nil
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) error {
	userID, err := pathUserID(r)
	if err != nil {
		return err
	}

	detail, err := h.admin.Detail(r.Context(), userID)
	if err != nil {
		return MapError(err)
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, detail)
	return nil
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) error {
	userID, err := pathUserID(r)
	if err != nil {
		return err
	}
	var req UpdateUserRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	user, err := h.admin.Update(r.Context(), actorID(r), userID, UpdateInput{
		FullName:   req.FullName,
		Tier:       req.Tier,
		IsVerified: req.IsVerified,
		IsActive:   req.IsActive,
	})
	if err != nil {
		return MapError(err)
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, user)
	return nil
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) error {
	userID, err := pathUserID(r)
	if err != nil {
		return err
	}

	if err := h.admin.Delete(r.Context(), actorID(r), userID); err != nil {
		return MapError(err)
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]string{"message": "user deleted"})
	return nil
}

func (h *Handlers) ChangeTier(w http.ResponseWriter, r *http.Request) error {
	userID, err := pathUserID(r)
	if err != nil {
		return err
	}
	var req ChangeTierRequest
	if err := request.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}
	tier, err := entitlement.ParseTier(req.Tier)
	if err != nil {
		return apperrors.FieldErrors(map[string]string{"tier": err.Error()})
	}

	change, err := h.admin.ChangeTier(r.Context(), userID, tier)
	if err != nil {
		return MapError(err)
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, TierChangeResponse{
		Message:    "tier changed from " + change.OldTier.String() + " to " + change.NewTier.String(),
		TierChange: change,
	})
	return nil
}

func pathUserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, apperrors.NotFound("user")
	}
	return id, nil
}

func actorID(r *http.Request) uuid.UUID {
	if userCtx := auth.GetUserFromContext(r.Context()); userCtx != nil {
		return userCtx.UserID
	}
	return uuid.Nil
}

// MapError converts admin failures into API errors.
func MapError(err error) error {
	var (
		appErr   *apperrors.AppError
		fieldErr *FieldError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &fieldErr):
		return apperrors.FieldErrors(map[string]string{fieldErr.Field: fieldErr.Reason})
	case errors.Is(err, ErrEmptyUpdate):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, ErrNotAdmin), errors.Is(err, ErrSelfDeactivate), errors.Is(err, ErrSelfDelete):
		return apperrors.Forbidden(err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		return apperrors.Unauthorized()
	case errors.Is(err, db.ErrUserNotFound):
		return apperrors.NotFound("user")
	default:
		return apperrors.InternalError("an unexpected error occurred").WithCause(err)
	}
}
