// Package router assembles the HTTP surface: provider webhooks, health,
// metrics, and the admin transcript endpoint.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tidynest/selenas/internal/http/handlers"
	"github.com/tidynest/selenas/internal/http/middleware"
	"github.com/tidynest/selenas/pkg/logging"
)

type Deps struct {
	Webhooks *handlers.WebhookHandler
	Admin    *handlers.AdminHandler
	Logger   *logging.Logger
}

func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks/sms", func(r chi.Router) {
		r.Post("/inbound", deps.Webhooks.Inbound)
		r.Post("/status", deps.Webhooks.Status)
	})

	r.Get("/admin/conversations/{phone}", deps.Admin.Transcript)

	return r
}
