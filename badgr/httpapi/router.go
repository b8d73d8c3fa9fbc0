package httpapi

import (
	"net/http"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/account"
	"github.com/badgrhq/badgr-server/badgr/auth"
	"github.com/badgrhq/badgr-server/badgr/backpack"
	"github.com/badgrhq/badgr-server/badgr/issuer"
	"github.com/badgrhq/badgr-server/badgr/logger"
	"github.com/badgrhq/badgr-server/badgr/socialauth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Tokens       *auth.TokenService
	Accounts     *account.Service
	Issuers      *issuer.Service
	Backpack     *backpack.Service
	SocialAuth   *socialauth.Adapter
	Metrics      *Metrics
	ShareLimiter *RateLimiter
	Logger       badgr.Logger
}

// Handler holds the HTTP handlers.
type Handler struct {
	Deps
}

// NewRouter creates the chi router with middleware and routes.
//
// Routes:
//   - GET /healthz, GET /metrics
//   - POST /v1/user/profile (register), GET /v1/user/profile
//   - /v1/user/emails/* - email address management
//   - /v1/user/socialauth/* - social login hooks
//   - /v1/earner/share/* - badge share links
//   - /v1/issuer/issuers/* - issuers, badge classes and assertions
//   - POST /v2/badgeclasses/{badge}/issue - batch award
//   - /public/* - hosted Open Badges documents
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	h := &Handler{Deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(deps.Metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", deps.Metrics.Handler())

	authenticated := auth.Authenticate(deps.Tokens)

	r.Route("/v1/user", func(r chi.Router) {
		r.Post("/profile", h.register)
		r.With(authenticated).Get("/profile", h.profile)

		r.Route("/emails", func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/", h.listEmails)
			r.Post("/", h.addEmail)
			r.Get("/{id}", h.getEmail)
			r.Put("/{id}", h.updateEmail)
			r.Delete("/{id}", h.deleteEmail)
			r.Post("/{id}/verify", h.verifyEmail)
		})

		r.Route("/socialauth", func(r chi.Router) {
			r.Get("/error", h.socialAuthError)
			r.Post("/prelogin", h.preSocialLogin)
		})
	})

	r.Route("/v1/earner/share", func(r chi.Router) {
		r.Get("/providers", h.listProviders)
		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			if deps.ShareLimiter != nil {
				r.Use(deps.ShareLimiter.Middleware)
			}
			r.Get("/badge/{slug}", h.shareBadge)
		})
	})

	r.Route("/v1/issuer/issuers", func(r chi.Router) {
		r.Use(authenticated)
		r.Post("/", h.createIssuer)
		r.Post("/{issuer}/badges", h.createBadgeClass)
		r.Get("/{issuer}/badges/{badge}/assertions", h.listAssertions)
		r.Post("/{issuer}/badges/{badge}/assertions", h.issueAssertion)
		r.Delete("/{issuer}/badges/{badge}/assertions/{slug}", h.revokeAssertion)
	})

	r.With(authenticated).Post("/v2/badgeclasses/{badge}/issue", h.batchIssue)

	r.Route("/public", func(r chi.Router) {
		r.Get("/assertions/{slug}", h.publicAssertion)
		r.Get("/badges/{slug}", h.publicBadgeClass)
		r.Get("/badges/{slug}/image", h.publicBadgeImage)
		r.Get("/issuers/{slug}", h.publicIssuer)
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			h.Logger.Debug("API request completed", logArgs...)
		} else {
			h.Logger.Info("API request completed", logArgs...)
		}
	})
}

// userID returns the authenticated caller. Routes using it sit behind
// auth.Authenticate.
func userID(r *http.Request) uint {
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return 0
}
