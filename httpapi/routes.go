package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MountChi mounts the four ceremony endpoints plus the operational
// GET /healthz and GET /metrics pair on a chi router, with request-id,
// recovery, and access logging middleware installed.
func MountChi(r chi.Router, h *Handler) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Post("/webauthn/register/options", h.BeginRegistration)
	r.Post("/webauthn/register", h.FinishRegistration)
	r.Post("/webauthn/authenticate/options", h.BeginAuthentication)
	r.Post("/login/webauthn", h.FinishLogin)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())
}

// NewRouter builds a ready-to-serve chi.Router with the routes above
// mounted at the root.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	MountChi(r, h)
	return r
}
