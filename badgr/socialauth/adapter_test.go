package socialauth

import (
	"testing"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/auth"
	"github.com/badgrhq/badgr-server/badgr/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T) (*Adapter, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: "socialauth-test-secret-with-enough-length",
		TTL:    time.Hour,
	})
	require.NoError(t, err)
	return NewAdapter(tokens, config.BadgrApp{
		UILoginRedirect:          "https://badgr.example/auth/login",
		UIConnectSuccessRedirect: "https://badgr.example/profile/profile",
	}), tokens
}

func TestAuthenticationErrorURL(t *testing.T) {
	adapter, _ := newAdapter(t)
	assert.Equal(t, "https://badgr.example/auth/login?authError=Authentication%20error", adapter.AuthenticationErrorURL())
	assert.Equal(t,
		"https://badgr.example/profile/profile?authError=Could%20not%20add%20social%20login.%20This%20account%20is%20already%20associated%20with%20a%20user.",
		adapter.ConnectConflictURL())
}

func TestPreSocialLogin(t *testing.T) {
	adapter, tokens := newAdapter(t)
	token, _, err := tokens.Issue(&badgr.User{ID: 5, Username: "earner"})
	require.NoError(t, err)

	t.Run("no token", func(t *testing.T) {
		outcome, err := adapter.PreSocialLogin("", SocialLogin{Email: "a@example.com", IsExisting: true, UserID: 9})
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", outcome.VerificationEmail)
		assert.Zero(t, outcome.UserID)
		assert.Empty(t, outcome.RedirectURL)
	})

	t.Run("new account", func(t *testing.T) {
		outcome, err := adapter.PreSocialLogin(token, SocialLogin{Email: "a@example.com"})
		require.NoError(t, err)
		assert.EqualValues(t, 5, outcome.UserID)
		assert.Empty(t, outcome.RedirectURL)
	})

	t.Run("same user", func(t *testing.T) {
		outcome, err := adapter.PreSocialLogin(token, SocialLogin{IsExisting: true, UserID: 5})
		require.NoError(t, err)
		assert.Empty(t, outcome.RedirectURL)
	})

	t.Run("linked to another user", func(t *testing.T) {
		outcome, err := adapter.PreSocialLogin(token, SocialLogin{IsExisting: true, UserID: 6})
		require.NoError(t, err)
		assert.Equal(t, adapter.ConnectConflictURL(), outcome.RedirectURL)
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := adapter.PreSocialLogin("garbage", SocialLogin{})
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}
