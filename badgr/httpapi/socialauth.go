package httpapi

import (
	"errors"
	"net/http"

	"github.com/badgrhq/badgr-server/badgr/socialauth"
)

type preSocialLoginRequest struct {
	AuthToken string `json:"auth_token"`
	socialauth.SocialLogin
}

type preSocialLoginResponse struct {
	UserID            uint   `json:"user_id,omitempty"`
	VerificationEmail string `json:"verification_email,omitempty"`
}

func (h *Handler) socialAuthError(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.SocialAuth.AuthenticationErrorURL(), http.StatusFound)
}

// preSocialLogin runs the connect checks for a completed provider login.
func (h *Handler) preSocialLogin(w http.ResponseWriter, r *http.Request) {
	var req preSocialLoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	outcome, err := h.SocialAuth.PreSocialLogin(req.AuthToken, req.SocialLogin)
	if err != nil {
		if errors.Is(err, socialauth.ErrAuthenticationFailed) {
			WriteProblem(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, h.Logger, err)
		return
	}
	if outcome.RedirectURL != "" {
		http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
		return
	}
	WriteJSONOK(w, preSocialLoginResponse{UserID: outcome.UserID, VerificationEmail: outcome.VerificationEmail})
}
