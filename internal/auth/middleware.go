package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/hireready/backend/internal/errors"
)

type contextKey string

const UserContextKey contextKey = "user"

type UserContext struct {
	UserID uuid.UUID
}

// TokenVerifier checks an access token and returns its subject.
type TokenVerifier interface {
	VerifyAccessToken(token string) (uuid.UUID, error)
}

// Middleware rejects requests without a valid bearer access token. Every
// failure produces the same 401 body.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apperrors.WriteError(w, apperrors.GetRequestID(r.Context()), apperrors.Unauthorized())
				return
			}

			userID, err := verifier.VerifyAccessToken(token)
			if err != nil {
				apperrors.WriteError(w, apperrors.GetRequestID(r.Context()), apperrors.Unauthorized())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &UserContext{UserID: userID})))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

func GetUserFromContext(ctx context.Context) *UserContext {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	if !ok {
		return nil
	}
	return user
}
