package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(IssuerConfig{Secret: testSecret, Issuer: "hireready"})
	require.NoError(t, err)
	if now != nil {
		iss.WithClock(now)
	}
	return iss
}

func TestNewIssuerRejectsShortSecret(t *testing.T) {
	_, err := NewIssuer(IssuerConfig{Secret: "too-short"})
	assert.ErrorIs(t, err, ErrShortSecret)
}

func TestNewIssuerDefaults(t *testing.T) {
	iss := newTestIssuer(t, nil)
	assert.Equal(t, DefaultAccessTokenExpiry, iss.AccessTTL())
	assert.Equal(t, DefaultRefreshTokenExpiry, iss.RefreshTTL())
}

func TestAccessTokenRoundTrip(t *testing.T) {
	iss := newTestIssuer(t, nil)
	userID := uuid.New()

	token, expiresAt, err := iss.IssueAccessToken(userID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultAccessTokenExpiry), expiresAt, 5*time.Second)

	got, err := iss.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestAccessTokenExpired(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, func() time.Time { return now })

	token, _, err := iss.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	now = now.Add(DefaultAccessTokenExpiry + time.Minute)
	_, err = iss.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestVerifyAccessTokenRejects(t *testing.T) {
	iss := newTestIssuer(t, nil)
	now := time.Now()

	valid := func() *Claims {
		return &Claims{
			Type: accessTokenType,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.NewString(),
				Issuer:    "hireready",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	tests := []struct {
		name  string
		token func() string
	}{
		{"garbage", func() string { return "not.a.jwt" }},
		{"empty", func() string { return "" }},
		{"bad signature", func() string {
			return sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), valid())
		}},
		{"wrong algorithm", func() string {
			return sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid())
		}},
		{"none algorithm", func() string {
			return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())
		}},
		{"wrong type", func() string {
			c := valid()
			c.Type = "refresh"
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
		{"wrong issuer", func() string {
			c := valid()
			c.Issuer = "someone-else"
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
		{"missing expiry", func() string {
			c := valid()
			c.ExpiresAt = nil
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
		{"non uuid subject", func() string {
			c := valid()
			c.Subject = "42"
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.VerifyAccessToken(tt.token())
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssueRefreshToken(t *testing.T) {
	iss := newTestIssuer(t, nil)

	a, expiresAt, err := iss.IssueRefreshToken()
	require.NoError(t, err)
	b, _, err := iss.IssueRefreshToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.WithinDuration(t, time.Now().Add(DefaultRefreshTokenExpiry), expiresAt, 5*time.Second)
}
