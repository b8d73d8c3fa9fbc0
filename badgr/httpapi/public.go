package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/badgrhq/badgr-server/badgr/imageutil"
	"github.com/badgrhq/badgr-server/badgr/openbadges"
	"github.com/go-chi/chi/v5"
)

const contentTypeLD = "application/ld+json"

// publicAssertion serves the hosted assertion; ?v=1_1 selects the 1.1 form.
func (h *Handler) publicAssertion(w http.ResponseWriter, r *http.Request) {
	instance, class, err := h.Issuers.GetAssertion(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if r.URL.Query().Get("v") == "1_1" {
		writeLD(w, openbadges.BuildAssertionV1(h.Issuers.URLs(), instance, class))
		return
	}
	writeLD(w, openbadges.BuildAssertion(h.Issuers.URLs(), instance, class))
}

func (h *Handler) publicBadgeClass(w http.ResponseWriter, r *http.Request) {
	class, owner, err := h.Issuers.GetBadgeClass(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeLD(w, openbadges.BuildBadgeClass(h.Issuers.URLs(), class, owner))
}

func (h *Handler) publicBadgeImage(w http.ResponseWriter, r *http.Request) {
	class, _, err := h.Issuers.GetBadgeClass(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if len(class.Image) == 0 {
		NotFound(w, "Not found.")
		return
	}
	contentType := class.ImageType
	if contentType == "" {
		contentType = imageutil.ContentTypePNG
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if contentType == imageutil.ContentTypeSVG {
		// Uploaded SVG may carry script.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(class.Image)
}

func (h *Handler) publicIssuer(w http.ResponseWriter, r *http.Request) {
	owner, err := h.Issuers.GetIssuer(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeLD(w, openbadges.BuildIssuer(h.Issuers.URLs(), owner))
}

func writeLD(w http.ResponseWriter, doc any) {
	w.Header().Set("Content-Type", contentTypeLD)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}
