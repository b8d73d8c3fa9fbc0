package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{Secret: testSecret, Issuer: "test", TTL: time.Hour})
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}
	return svc
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService(TokenConfig{Secret: "short"})
	if !errors.Is(err, ErrInvalidSecretLength) {
		t.Fatalf("expected ErrInvalidSecretLength, got %v", err)
	}
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestTokenService(t)

	token, expiresAt, err := svc.Issue(&badgr.User{ID: 7, Username: "earner"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)
	assert.Equal(t, "earner", claims.Username)
	assert.Equal(t, "7", claims.Subject)
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestTokenService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Issue(&badgr.User{ID: 1, Username: "old"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_WrongSecretOrIssuer(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService(TokenConfig{Secret: testSecret + "-other", Issuer: "test"})
	require.NoError(t, err)
	token, _, err := other.Issue(&badgr.User{ID: 1})
	require.NoError(t, err)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer, err := NewTokenService(TokenConfig{Secret: testSecret, Issuer: "elsewhere"})
	require.NoError(t, err)
	token, _, err = otherIssuer.Issue(&badgr.User{ID: 1})
	require.NoError(t, err)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name        string
		authHeader  string
		wantToken   string
		wantSuccess bool
	}{
		{"empty header", "", "", false},
		{"bearer token", "Bearer abc123", "abc123", true},
		{"bearer lowercase", "bearer abc123", "abc123", true},
		{"missing token", "Bearer", "", false},
		{"blank token", "Bearer   ", "", false},
		{"wrong scheme", "Basic abc123", "", false},
		{"no space", "Bearerabc123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			token, ok := ExtractBearerToken(req)
			if ok != tt.wantSuccess || token != tt.wantToken {
				t.Errorf("ExtractBearerToken() = (%q, %v), want (%q, %v)", token, ok, tt.wantToken, tt.wantSuccess)
			}
		})
	}
}

func TestAuthenticateMiddleware(t *testing.T) {
	svc := newTestTokenService(t)
	var seen *Claims
	handler := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)

	token, _, err := svc.Issue(&badgr.User{ID: 3, Username: "u"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.EqualValues(t, 3, seen.UserID)
}
