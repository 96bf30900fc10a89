package api

import (
	"context"
	"net/http"

	"github.com/hireready/backend/internal/auth"
	apperrors "github.com/hireready/backend/internal/errors"
	"github.com/hireready/backend/internal/quota"
)

type decisionKey struct{}

// RequireFeature admits a request only if the caller's tier grants feature
// and, for metered features, a unit of the monthly allowance was consumed.
// It must run after auth.Middleware.
func RequireFeature(tracker *quota.Tracker, feature string, onError func(*http.Request, *apperrors.AppError)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return apperrors.HandleFunc(func(w http.ResponseWriter, r *http.Request) error {
			userCtx := auth.GetUserFromContext(r.Context())
			if userCtx == nil {
				return apperrors.Unauthorized()
			}

			decision, err := tracker.CheckAndConsume(r.Context(), userCtx.UserID, feature)
			if err != nil {
				return quota.MapError(err)
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), decisionKey{}, decision)))
			return nil
		}, onError)
	}
}

// DecisionFromContext returns the quota decision made by RequireFeature.
func DecisionFromContext(ctx context.Context) *quota.Decision {
	d, _ := ctx.Value(decisionKey{}).(*quota.Decision)
	return d
}
