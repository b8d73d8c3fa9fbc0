// Package socialauth hooks Badgr session state into third-party login flows.
package socialauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/badgrhq/badgr-server/badgr/auth"
	"github.com/badgrhq/badgr-server/badgr/config"
)

const (
	authenticationErrorMessage = "Authentication error"
	connectConflictMessage     = "Could not add social login. This account is already associated with a user."
)

// ErrAuthenticationFailed is returned when the session auth token of a
// connect request does not verify.
var ErrAuthenticationFailed = errors.New("socialauth: authentication failed")

// SocialLogin describes the account returned by a social provider.
type SocialLogin struct {
	Email string `json:"email"`
	// IsExisting is true when the provider account is already linked.
	IsExisting bool `json:"is_existing"`
	// UserID is the Badgr user the provider account is linked to.
	UserID uint `json:"user_id"`
}

// Outcome is the result of PreSocialLogin.
type Outcome struct {
	// UserID is the verified session user, zero when no token was presented.
	UserID uint
	// VerificationEmail is remembered for the redirect back to the front end.
	VerificationEmail string
	// RedirectURL, when set, ends the flow with a redirect.
	RedirectURL string
}

// Adapter connects social logins to Badgr users.
type Adapter struct {
	tokens *auth.TokenService
	app    config.BadgrApp
}

// NewAdapter creates an adapter redirecting to app.
func NewAdapter(tokens *auth.TokenService, app config.BadgrApp) *Adapter {
	return &Adapter{tokens: tokens, app: app}
}

// AuthenticationErrorURL is where failed provider logins are sent.
func (a *Adapter) AuthenticationErrorURL() string {
	return withAuthError(a.app.UILoginRedirect, authenticationErrorMessage)
}

// ConnectConflictURL is where a connect attempt for an account linked to
// another user is sent.
func (a *Adapter) ConnectConflictURL() string {
	return withAuthError(a.app.UIConnectSuccessRedirect, connectConflictMessage)
}

// PreSocialLogin verifies the auth token carried through a connect request
// and rejects provider accounts that already belong to a different user.
func (a *Adapter) PreSocialLogin(authToken string, login SocialLogin) (*Outcome, error) {
	outcome := &Outcome{VerificationEmail: login.Email}
	authToken = strings.TrimSpace(authToken)
	if authToken == "" {
		return outcome, nil
	}

	claims, err := a.tokens.Verify(authToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	outcome.UserID = claims.UserID

	if login.IsExisting && login.UserID != claims.UserID {
		outcome.RedirectURL = a.ConnectConflictURL()
	}
	return outcome, nil
}

func withAuthError(base, message string) string {
	return base + "?authError=" + url.PathEscape(message)
}
