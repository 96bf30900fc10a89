package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hireready/backend/internal/errors"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "auth")

	log.Info(context.Background(), "test message", map[string]interface{}{"key": "value"})

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "auth", entry["component"])
}

func TestLogger_RequestIDPropagation(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	ctx := apperrors.WithRequestID(context.Background(), "test-request-id")
	log.Info(ctx, "test message")

	assert.Equal(t, "test-request-id", decode(t, &buf)["request_id"])
}

func TestLogger_LogLevels(t *testing.T) {
	tests := []struct {
		minLevel     Level
		logLevel     string
		shouldOutput bool
	}{
		{LevelInfo, "debug", false},
		{LevelInfo, "info", true},
		{LevelWarn, "info", false},
		{LevelWarn, "warn", true},
		{LevelError, "warn", false},
		{LevelError, "error", true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		log := New(&buf, tt.minLevel, "")
		ctx := context.Background()

		switch tt.logLevel {
		case "debug":
			log.Debug(ctx, "msg")
		case "info":
			log.Info(ctx, "msg")
		case "warn":
			log.Warn(ctx, "msg")
		case "error":
			log.Error(ctx, "msg", errors.New("boom"))
		}

		assert.Equal(t, tt.shouldOutput, buf.Len() > 0, "min=%s log=%s", tt.minLevel, tt.logLevel)
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	log.Info(context.Background(), "login", map[string]interface{}{
		"email":         "a@b.co",
		"password":      "hunter22",
		"refresh_token": "abc",
	})

	entry := decode(t, &buf)
	assert.Equal(t, "a@b.co", entry["email"])
	assert.Equal(t, "[REDACTED]", entry["password"])
	assert.Equal(t, "[REDACTED]", entry["refresh_token"])
}

func TestLogger_ErrorIncludesAppErrorCode(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	log.Error(context.Background(), "failed", apperrors.NotFound("user"))

	entry := decode(t, &buf)
	assert.Equal(t, apperrors.CodeNotFound, entry["error_code"])
	assert.Contains(t, entry["error"], "user not found")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestSanitizeQuery(t *testing.T) {
	got := sanitizeQuery("page=2&token=abc&search=bob")
	assert.Equal(t, "page=2&search=bob&token=%5BREDACTED%5D", got)
	assert.Empty(t, sanitizeQuery("%zz"))
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := RecoveryMiddleware(New(&buf, LevelDebug, ""))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(buf.String(), "kaboom"))
	assert.NotContains(t, rec.Body.String(), "kaboom")
}
