package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-booking/internal/auth"
)

const testSecret = "test-signing-secret"

func TestIssueAndParseToken(t *testing.T) {
	token, err := auth.IssueToken(testSecret, "usr-1", "admin", time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := auth.ParseToken(testSecret, token)
	assert.NoError(t, err)
	assert.Equal(t, "usr-1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := auth.IssueToken(testSecret, "usr-1", "admin", time.Hour)
	assert.NoError(t, err)

	_, err = auth.ParseToken("other-secret", token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := auth.IssueToken(testSecret, "usr-1", "admin", -time.Minute)
	assert.NoError(t, err)

	_, err = auth.ParseToken(testSecret, token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := auth.ParseToken(testSecret, "not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	token, err := auth.ExtractTokenFromRequest(r)
	assert.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestExtractTokenMissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := auth.ExtractTokenFromRequest(r)
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestExtractTokenBadFormat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Token abc123")

	_, err := auth.ExtractTokenFromRequest(r)
	assert.Error(t, err)
}

func TestMiddlewareEnforcesRole(t *testing.T) {
	handler := auth.Middleware(testSecret, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "usr-1", auth.UserID(r.Context()))
		assert.Equal(t, "admin", auth.Role(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	// No token
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token, wrong role
	clientToken, _ := auth.IssueToken(testSecret, "usr-2", "client", time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+clientToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Valid admin token
	adminToken, _ := auth.IssueToken(testSecret, "usr-1", "admin", time.Hour)
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}
