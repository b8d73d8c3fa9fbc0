package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/issuer"
	"github.com/badgrhq/badgr-server/badgr/openbadges"
	"github.com/go-chi/chi/v5"
)

// maxBadgeUpload bounds multipart badge class uploads.
const maxBadgeUpload = 8 << 20

type revokeRequest struct {
	RevocationReason string `json:"revocation_reason"`
}

// batchIssueRequest is the 2.0 style batch award body.
type batchIssueRequest struct {
	Assertions         []batchAssertion `json:"assertions"`
	CreateNotification bool             `json:"create_notification"`
}

type batchAssertion struct {
	Recipient struct {
		Identity string `json:"identity"`
		Type     string `json:"type"`
		Hashed   *bool  `json:"hashed"`
	} `json:"recipient"`
	Narrative string `json:"narrative"`
	Evidence  []struct {
		URL       string `json:"url"`
		Narrative string `json:"narrative"`
	} `json:"evidence"`
	IssuedOn *time.Time `json:"issuedOn"`
	Expires  *time.Time `json:"expires"`
}

type batchIssueResponse struct {
	Status batchStatus   `json:"status"`
	Result []batchIssued `json:"result"`
}

type batchStatus struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
}

type batchIssued struct {
	EntityID string `json:"entityId"`
	openbadges.AssertionV2
}

func (b batchAssertion) input() issuer.AssertionInput {
	in := issuer.AssertionInput{
		RecipientIdentifier: b.Recipient.Identity,
		RecipientType:       b.Recipient.Type,
		Hashed:              b.Recipient.Hashed,
		Narrative:           b.Narrative,
		IssuedOn:            b.IssuedOn,
		Expires:             b.Expires,
	}
	for _, e := range b.Evidence {
		in.EvidenceItems = append(in.EvidenceItems, issuer.EvidenceInput{EvidenceURL: e.URL, Narrative: e.Narrative})
	}
	return in
}

func (h *Handler) createIssuer(w http.ResponseWriter, r *http.Request) {
	var req issuer.IssuerInput
	if !decodeJSONBody(w, r, &req) {
		return
	}
	created, err := h.Issuers.CreateIssuer(r.Context(), userID(r), req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONCreated(w, openbadges.BuildIssuer(h.Issuers.URLs(), created))
}

// createBadgeClass handles the multipart POST /v1/issuer/issuers/{issuer}/badges.
func (h *Handler) createBadgeClass(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBadgeUpload)
	if err := r.ParseMultipartForm(maxBadgeUpload); err != nil {
		BadRequest(w, "Invalid multipart body")
		return
	}
	in := issuer.BadgeClassInput{
		Name:         r.FormValue("name"),
		Description:  r.FormValue("description"),
		CriteriaURL:  r.FormValue("criteria_url"),
		CriteriaText: r.FormValue("criteria_text"),
	}
	if raw := r.FormValue("alignments"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Alignments); err != nil {
			BadRequest(w, "alignments: Invalid JSON")
			return
		}
	}
	if file, _, err := r.FormFile("image"); err == nil {
		defer file.Close()
		in.Image = file
	}

	issuerSlug := chi.URLParam(r, "issuer")
	class, err := h.Issuers.CreateBadgeClass(r.Context(), userID(r), issuerSlug, in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	owner, err := h.Issuers.GetIssuer(r.Context(), issuerSlug)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSONCreated(w, openbadges.BuildBadgeClass(h.Issuers.URLs(), class, owner))
}

func (h *Handler) issueAssertion(w http.ResponseWriter, r *http.Request) {
	var req issuer.AssertionInput
	if !decodeJSONBody(w, r, &req) {
		return
	}
	instance, err := h.Issuers.IssueAssertion(r.Context(), userID(r), chi.URLParam(r, "issuer"), chi.URLParam(r, "badge"), req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.writeAssertion(w, r, http.StatusCreated, instance)
}

// batchIssue handles POST /v2/badgeclasses/{badge}/issue.
func (h *Handler) batchIssue(w http.ResponseWriter, r *http.Request) {
	var req batchIssueRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	inputs := make([]issuer.AssertionInput, 0, len(req.Assertions))
	for _, a := range req.Assertions {
		inputs = append(inputs, a.input())
	}

	badgeSlug := chi.URLParam(r, "badge")
	instances, err := h.Issuers.IssueAssertions(r.Context(), userID(r), badgeSlug, inputs, req.CreateNotification)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	class, _, err := h.Issuers.GetBadgeClass(r.Context(), badgeSlug)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	resp := batchIssueResponse{
		Status: batchStatus{Success: true, Description: "ok"},
		Result: make([]batchIssued, 0, len(instances)),
	}
	for _, instance := range instances {
		resp.Result = append(resp.Result, batchIssued{
			EntityID:    instance.EntityID,
			AssertionV2: openbadges.BuildAssertion(h.Issuers.URLs(), instance, class),
		})
	}
	WriteJSONCreated(w, resp)
}

func (h *Handler) listAssertions(w http.ResponseWriter, r *http.Request) {
	instances, err := h.Issuers.ListAssertions(r.Context(), userID(r), chi.URLParam(r, "issuer"), chi.URLParam(r, "badge"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	class, _, err := h.Issuers.GetBadgeClass(r.Context(), chi.URLParam(r, "badge"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	resp := make([]openbadges.AssertionV2, 0, len(instances))
	for _, instance := range instances {
		resp = append(resp, openbadges.BuildAssertion(h.Issuers.URLs(), instance, class))
	}
	WriteJSONOK(w, resp)
}

func (h *Handler) revokeAssertion(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	instance, err := h.Issuers.RevokeAssertion(r.Context(), userID(r),
		chi.URLParam(r, "issuer"), chi.URLParam(r, "badge"), chi.URLParam(r, "slug"), req.RevocationReason)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.writeAssertion(w, r, http.StatusOK, instance)
}

func (h *Handler) writeAssertion(w http.ResponseWriter, r *http.Request, status int, instance *badgr.BadgeInstance) {
	class, _, err := h.Issuers.GetBadgeClass(r.Context(), chi.URLParam(r, "badge"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	WriteJSON(w, status, openbadges.BuildAssertion(h.Issuers.URLs(), instance, class))
}
