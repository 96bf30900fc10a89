// Package api assembles every HTTP route of the service.
package api

import (
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/hireready/backend/internal/admin"
	"github.com/hireready/backend/internal/auth"
	"github.com/hireready/backend/internal/entitlement"
	apperrors "github.com/hireready/backend/internal/errors"
	"github.com/hireready/backend/internal/health"
	"github.com/hireready/backend/internal/logger"
	"github.com/hireready/backend/internal/metrics"
	"github.com/hireready/backend/internal/middleware"
	"github.com/hireready/backend/internal/quota"
)

// APIPrefix is the second mount point of every route, matching the web
// client's base URL.
const APIPrefix = "/api"

const rateLimitWindow = time.Minute

type Config struct {
	Auth    *auth.Service
	Quota   *quota.Tracker
	Admin   *admin.Service
	Health  *health.Checker
	Limiter middleware.Limiter

	RateLimitPerMinute int
	TrustedProxies     []netip.Prefix
	CORSOrigins        []string
	Log                *logger.Logger
}

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	cfg     Config
	log     *logger.Logger

	authHandlers  *auth.Handlers
	quotaHandlers *quota.Handlers
	adminHandlers *admin.Handlers
	healthHandler *health.Handler
	protected     func(http.Handler) http.Handler
}

func NewRouter(cfg Config) *Router {
	r := &Router{
		mux:           http.NewServeMux(),
		cfg:           cfg,
		log:           cfg.Log.WithComponent("api"),
		authHandlers:  auth.NewHandlers(cfg.Auth),
		quotaHandlers: quota.NewHandlers(cfg.Quota),
		healthHandler: health.NewHandler(cfg.Health),
		protected:     auth.Middleware(cfg.Auth.Issuer()),
	}
	r.adminHandlers = admin.NewHandlers(cfg.Admin, r.logServerError)
	r.setupRoutes()

	r.handler = middleware.Chain(r.mux,
		apperrors.RequestIDMiddleware,
		logger.RecoveryMiddleware(cfg.Log),
		logger.LoggingMiddleware(cfg.Log),
		middleware.Metrics(r.routeOf),
		middleware.CORS(cfg.CORSOrigins),
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Operational
	r.mux.HandleFunc("GET /health", r.healthHandler.ReadinessHandler)
	r.mux.HandleFunc("GET /health/live", r.healthHandler.LivenessHandler)
	r.mux.Handle("GET /metrics", metrics.Handler())

	// Public auth routes
	r.handle("POST /auth/register", r.limited("register", r.authHandlers.Register))
	r.handle("POST /auth/login", r.limited("login", r.authHandlers.Login))
	r.handle("POST /auth/refresh", r.wrap(r.authHandlers.Refresh))
	r.handle("POST /auth/verify-email", r.wrap(r.authHandlers.VerifyEmail))
	r.handle("POST /auth/resend-verification", r.limited("resend-verification", r.authHandlers.ResendVerification))
	r.handle("POST /auth/forgot-password", r.limited("forgot-password", r.authHandlers.ForgotPassword))
	r.handle("POST /auth/reset-password", r.limited("reset-password", r.authHandlers.ResetPassword))
	r.handle("GET /tiers", r.wrap(listTiers))

	// Authenticated user routes
	r.handle("GET /auth/me", r.protected(r.wrap(r.authHandlers.Me)))
	r.handle("POST /auth/logout", r.protected(r.wrap(r.authHandlers.Logout)))
	r.handle("GET /auth/sessions", r.protected(r.wrap(r.authHandlers.ListSessions)))
	r.handle("DELETE /auth/sessions/{id}", r.protected(r.wrap(r.authHandlers.RevokeSession)))
	r.handle("GET /user/tier", r.protected(r.wrap(r.quotaHandlers.Tier)))
	r.handle("POST /user/check-access/{feature}", r.protected(r.wrap(r.quotaHandlers.CheckAccess)))
	r.handle("GET /user/usage", r.protected(r.wrap(r.quotaHandlers.Usage)))
	r.handle("POST /user/features/{feature}/consume", r.protected(r.wrap(r.quotaHandlers.Consume)))

	// Admin routes
	r.handle("GET /admin/stats", r.admin(r.adminHandlers.Stats))
	r.handle("GET /admin/users", r.admin(r.adminHandlers.ListUsers))
	r.handle("GET /admin/users/{id}", r.admin(r.adminHandlers.GetUser))
	r.handle("PUT /admin/users/{id}", r.admin(r.adminHandlers.UpdateUser))
	r.handle("DELETE /admin/users/{id}", r.admin(r.adminHandlers.DeleteUser))
	r.handle("POST /admin/users/{id}/change-tier", r.admin(r.adminHandlers.ChangeTier))
}

// HandleFeature mounts a collaborator's feature handler behind authentication
// and the entitlement and quota gate for feature.
func (r *Router) HandleFeature(pattern, feature string, h http.Handler) {
	r.handle(pattern, r.protected(RequireFeature(r.cfg.Quota, feature, r.logServerError)(h)))
}

// handle registers pattern both at the root and under APIPrefix.
func (r *Router) handle(pattern string, h http.Handler) {
	method, path, _ := strings.Cut(pattern, " ")
	r.mux.Handle(method+" "+path, h)
	r.mux.Handle(method+" "+APIPrefix+path, h)
}

func (r *Router) wrap(h apperrors.Handler) http.Handler {
	return apperrors.HandleFunc(h, r.logServerError)
}

func (r *Router) limited(name string, h apperrors.Handler) http.Handler {
	return middleware.RateLimit(r.cfg.Limiter, name, r.cfg.RateLimitPerMinute, rateLimitWindow, r.cfg.TrustedProxies, r.log)(r.wrap(h))
}

func (r *Router) admin(h apperrors.Handler) http.Handler {
	return r.protected(r.adminHandlers.RequireAdmin(r.wrap(h)))
}

func (r *Router) routeOf(req *http.Request) string {
	_, pattern := r.mux.Handler(req)
	return pattern
}

func (r *Router) logServerError(req *http.Request, err *apperrors.AppError) {
	if !apperrors.IsServerError(err) {
		return
	}
	cause := err.Cause
	if cause == nil {
		cause = err
	}
	r.log.Error(req.Context(), "request failed", cause, map[string]interface{}{
		"method": req.Method,
		"path":   req.URL.Path,
	})
}

func listTiers(w http.ResponseWriter, r *http.Request) error {
	tiers := make([]entitlement.Entitlement, 0, len(entitlement.Tiers()))
	for _, t := range entitlement.Tiers() {
		e, _ := entitlement.Resolve(t)
		tiers = append(tiers, e)
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]any{"tiers": tiers})
	return nil
}
