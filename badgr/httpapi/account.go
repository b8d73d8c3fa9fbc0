package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/account"
	"github.com/go-chi/chi/v5"
)

type userResponse struct {
	EntityID  string `json:"entity_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type registerResponse struct {
	User    userResponse `json:"user"`
	Token   string       `json:"token"`
	Expires time.Time    `json:"expires"`
}

type emailResponse struct {
	ID       uint     `json:"id"`
	Email    string   `json:"email"`
	Verified bool     `json:"verified"`
	Primary  bool     `json:"primary"`
	Variants []string `json:"variants"`
}

func toUserResponse(u *badgr.User) userResponse {
	return userResponse{EntityID: u.EntityID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

func toEmailResponse(e *badgr.EmailAddress) emailResponse {
	variants := e.Variants
	if variants == nil {
		variants = []string{}
	}
	return emailResponse{ID: e.ID, Email: e.Email, Verified: e.Verified, Primary: e.Primary, Variants: variants}
}

// register handles POST /v1/user/profile.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if !decodeJSONBody(w, r, &req) {
		return
	}
	user, err := h.Accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	token, expires, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONCreated(w, registerResponse{User: toUserResponse(user), Token: token, Expires: expires})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.Accounts.GetUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONOK(w, toUserResponse(user))
}

func (h *Handler) listEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := h.Accounts.ListEmails(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	resp := make([]emailResponse, 0, len(emails))
	for _, e := range emails {
		resp = append(resp, toEmailResponse(e))
	}
	WriteJSONOK(w, resp)
}

func (h *Handler) addEmail(w http.ResponseWriter, r *http.Request) {
	var req account.EmailInput
	if !decodeJSONBody(w, r, &req) {
		return
	}
	email, err := h.Accounts.AddEmail(r.Context(), userID(r), req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONCreated(w, toEmailResponse(email))
}

func (h *Handler) getEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	email, err := h.Accounts.GetEmail(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONOK(w, toEmailResponse(email))
}

func (h *Handler) updateEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	var req account.UpdateEmailInput
	if !decodeJSONBody(w, r, &req) {
		return
	}
	email, err := h.Accounts.UpdateEmail(r.Context(), userID(r), id, req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONOK(w, toEmailResponse(email))
}

func (h *Handler) deleteEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	if err := h.Accounts.DeleteEmail(r.Context(), userID(r), id); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONOK(w, map[string]string{"status": "deleted"})
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	email, err := h.Accounts.VerifyEmail(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONOK(w, toEmailResponse(email))
}

// emailID parses the {id} path parameter; malformed ids are reported as not found.
func emailID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		NotFound(w, "Not found.")
		return 0, false
	}
	return uint(id), true
}
