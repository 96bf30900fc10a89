package verification

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/db/memdb"
	"github.com/hireready/backend/internal/entitlement"
)

func setup(t *testing.T) (*Manager, *memdb.Store, *db.User, *time.Time) {
	t.Helper()
	store := memdb.New()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	user := &db.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "old", Tier: entitlement.TierFree, IsActive: true, CreatedAt: now}
	require.NoError(t, store.Users().Create(context.Background(), user))

	m := NewManager(store.Tokens()).WithClock(func() time.Time { return now })
	return m, store, user, &now
}

func TestIssueAndRedeemVerification(t *testing.T) {
	m, store, user, _ := setup(t)
	ctx := context.Background()

	token, expiresAt, err := m.Issue(ctx, user.ID, db.PurposeEmailVerification, 24*time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 24*time.Hour, expiresAt.Sub(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)))

	got, err := m.Redeem(ctx, token, db.PurposeEmailVerification, db.Effect{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got)

	u, _ := store.Users().GetByID(ctx, user.ID)
	assert.True(t, u.IsVerified)

	_, err = m.Redeem(ctx, token, db.PurposeEmailVerification, db.Effect{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedeemWrongPurpose(t *testing.T) {
	m, _, user, _ := setup(t)
	ctx := context.Background()

	token, _, err := m.Issue(ctx, user.ID, db.PurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	_, err = m.Redeem(ctx, token, db.PurposePasswordReset, db.Effect{PasswordHash: "new"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedeemExpired(t *testing.T) {
	m, _, user, now := setup(t)
	ctx := context.Background()

	token, _, err := m.Issue(ctx, user.ID, db.PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	_, err = m.Redeem(ctx, token, db.PurposePasswordReset, db.Effect{PasswordHash: "new"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedeemResetSetsPasswordAndRetiresOthers(t *testing.T) {
	m, store, user, _ := setup(t)
	ctx := context.Background()

	first, _, err := m.Issue(ctx, user.ID, db.PurposePasswordReset, time.Hour)
	require.NoError(t, err)
	second, _, err := m.Issue(ctx, user.ID, db.PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	_, err = m.Redeem(ctx, second, db.PurposePasswordReset, db.Effect{PasswordHash: "new-hash"})
	require.NoError(t, err)

	u, _ := store.Users().GetByID(ctx, user.ID)
	assert.Equal(t, "new-hash", u.PasswordHash)

	_, err = m.Redeem(ctx, first, db.PurposePasswordReset, db.Effect{PasswordHash: "other"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedeemInactiveUser(t *testing.T) {
	m, store, user, now := setup(t)
	ctx := context.Background()

	token, _, err := m.Issue(ctx, user.ID, db.PurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	inactive := false
	_, err = store.Users().Update(ctx, user.ID, db.UserUpdate{IsActive: &inactive}, *now)
	require.NoError(t, err)

	_, err = m.Redeem(ctx, token, db.PurposeEmailVerification, db.Effect{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestConcurrentRedeemSingleWinner(t *testing.T) {
	m, _, user, _ := setup(t)
	ctx := context.Background()

	token, _, err := m.Issue(ctx, user.ID, db.PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Redeem(ctx, token, db.PurposePasswordReset, db.Effect{PasswordHash: "h"}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestIssueRejectsNonPositiveTTL(t *testing.T) {
	m, _, user, _ := setup(t)
	_, _, err := m.Issue(context.Background(), user.ID, db.PurposeEmailVerification, 0)
	assert.Error(t, err)
}

func TestRedeemEmptyToken(t *testing.T) {
	m, _, _, _ := setup(t)
	_, err := m.Redeem(context.Background(), "", db.PurposeEmailVerification, db.Effect{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
