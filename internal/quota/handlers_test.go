package quota

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireready/backend/internal/auth"
	"github.com/hireready/backend/internal/db/memdb"
	"github.com/hireready/backend/internal/entitlement"
	apperrors "github.com/hireready/backend/internal/errors"
)

func serve(t *testing.T, h apperrors.Handler, pattern, method, path string, userID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(pattern, apperrors.HandleFunc(h, nil))

	req := httptest.NewRequest(method, path, nil)
	if userID != uuid.Nil {
		req = req.WithContext(auth.WithUser(req.Context(), &auth.UserContext{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCheckAccessHandler(t *testing.T) {
	store := memdb.New()
	userID := seedUser(t, store, entitlement.TierFree)
	h := NewHandlers(NewTracker(store))

	rec := serve(t, h.CheckAccess, "POST /user/check-access/{feature}", http.MethodPost, "/user/check-access/cover_letter", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.HasAccess)
	assert.Equal(t, entitlement.TierFree, resp.CurrentTier)
	assert.Equal(t, entitlement.TierPremium, resp.RequiredTier)

	rec = serve(t, h.CheckAccess, "POST /user/check-access/{feature}", http.MethodPost, "/user/check-access/resume_builder", userID)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.HasAccess)
}

func TestConsumeHandler(t *testing.T) {
	store := memdb.New()
	userID := seedUser(t, store, entitlement.TierFree)
	h := NewHandlers(NewTracker(store))
	pattern := "POST /user/features/{feature}/consume"

	rec := serve(t, h.Consume, pattern, http.MethodPost, "/user/features/pdf_download/consume", userID)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h.Consume, pattern, http.MethodPost, "/user/features/pdf_download/consume", userID)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var errResp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, apperrors.CodeQuotaExceeded, errResp.Error.Code)
	assert.Equal(t, true, errResp.Error.Details["upgrade_required"])
	assert.Equal(t, float64(1), errResp.Error.Details["limit"])

	rec = serve(t, h.Consume, pattern, http.MethodPost, "/user/features/cover_letter/consume", userID)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, apperrors.CodeUpgradeRequired, errResp.Error.Code)
	assert.Equal(t, "premium", errResp.Error.Details["required_tier"])

	rec = serve(t, h.Consume, pattern, http.MethodPost, "/user/features/nope/consume", userID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTierAndUsageHandlers(t *testing.T) {
	store := memdb.New()
	userID := seedUser(t, store, entitlement.TierPremium)
	h := NewHandlers(NewTracker(store))

	rec := serve(t, h.Tier, "GET /user/tier", http.MethodGet, "/user/tier", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	var ent entitlement.Entitlement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ent))
	assert.Equal(t, entitlement.TierPremium, ent.Tier)
	assert.Equal(t, entitlement.Unlimited, ent.Quotas[entitlement.FeatureCoverLetter])

	rec = serve(t, h.Usage, "GET /user/usage", http.MethodGet, "/user/usage", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Features, 2)
}

func TestHandlersRequireUser(t *testing.T) {
	h := NewHandlers(NewTracker(memdb.New()))

	rec := serve(t, h.Usage, "GET /user/usage", http.MethodGet, "/user/usage", uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, h.Usage, "GET /user/usage", http.MethodGet, "/user/usage", uuid.New())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
