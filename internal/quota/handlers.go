package quota

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hireready/backend/internal/auth"
	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/entitlement"
	apperrors "github.com/hireready/backend/internal/errors"
)

type AccessResponse struct {
	Feature      string           `json:"feature"`
	HasAccess    bool             `json:"has_access"`
	CurrentTier  entitlement.Tier `json:"current_tier"`
	RequiredTier entitlement.Tier `json:"required_tier,omitempty"`
}

type Handlers struct {
	tracker *Tracker
}

func NewHandlers(tracker *Tracker) *Handlers {
	return &Handlers{tracker: tracker}
}

// Tier describes the caller's tier, its features and quotas.
func (h *Handlers) Tier(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUser(r)
	if err != nil {
		return err
	}

	_, ent, err := h.tracker.Entitlement(r.Context(), userID)
	if err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, ent)
	return nil
}

func (h *Handlers) CheckAccess(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUser(r)
	if err != nil {
		return err
	}
	feature := r.PathValue("feature")

	ent, err := h.tracker.CheckAccess(r.Context(), userID, feature)
	resp := AccessResponse{Feature: feature, HasAccess: err == nil, CurrentTier: ent.Tier}

	var notEntitled *NotEntitledError
	if errors.As(err, &notEntitled) {
		resp.RequiredTier = notEntitled.RequiredTier
	} else if err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, resp)
	return nil
}

func (h *Handlers) Usage(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUser(r)
	if err != nil {
		return err
	}

	report, err := h.tracker.Usage(r.Context(), userID)
	if err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, report)
	return nil
}

// Consume is the entry point for feature collaborators: it checks access and
// records one use before the caller does any work.
func (h *Handlers) Consume(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUser(r)
	if err != nil {
		return err
	}

	decision, err := h.tracker.CheckAndConsume(r.Context(), userID, r.PathValue("feature"))
	if err != nil {
		return MapError(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, decision)
	return nil
}

func currentUser(r *http.Request) (uuid.UUID, error) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		return uuid.Nil, apperrors.Unauthorized()
	}
	return userCtx.UserID, nil
}

// MapError converts tracker failures into API errors.
func MapError(err error) error {
	var (
		appErr      *apperrors.AppError
		exceeded    *ExceededError
		notEntitled *NotEntitledError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &exceeded):
		return apperrors.QuotaExceeded(exceeded.Feature, exceeded.Tier.String(), exceeded.Limit, exceeded.Period)
	case errors.As(err, &notEntitled):
		if notEntitled.RequiredTier == "" {
			return apperrors.NotFound("feature")
		}
		return apperrors.UpgradeRequired(notEntitled.Feature, notEntitled.Tier.String(), notEntitled.RequiredTier.String())
	case errors.Is(err, ErrInactiveUser), errors.Is(err, db.ErrUserNotFound):
		return apperrors.Unauthorized()
	default:
		return apperrors.InternalError("an unexpected error occurred").WithCause(err)
	}
}
