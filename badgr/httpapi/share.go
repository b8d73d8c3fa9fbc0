package httpapi

import (
	"net/http"
	"strings"

	"github.com/badgrhq/badgr-server/badgr/backpack"
	"github.com/go-chi/chi/v5"
)

type providerResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type shareResponse struct {
	URL string `json:"url"`
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	providers := h.Backpack.Providers()
	resp := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		resp = append(resp, providerResponse{Code: p.Code, Name: p.DisplayName})
	}
	WriteJSONOK(w, resp)
}

// shareBadge handles GET /v1/earner/share/badge/{slug}.
func (h *Handler) shareBadge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := backpack.ShareRequest{
		Provider: query.Get("provider"),
		Source:   query.Get("source"),
		Title:    query.Get("title"),
		Summary:  query.Get("summary"),
	}

	shareURL, err := h.Backpack.Share(r.Context(), userID(r), chi.URLParam(r, "slug"), req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Metrics.ObserveShare(strings.ToLower(strings.TrimSpace(req.Provider)))

	if redirect := query.Get("redirect"); redirect == "1" || strings.EqualFold(redirect, "true") {
		http.Redirect(w, r, shareURL, http.StatusFound)
		return
	}
	WriteJSONOK(w, shareResponse{URL: shareURL})
}
