package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router wires the operator and webhook routes. A nil verifier leaves the
// webhook routes unauthenticated.
func Router(h *Handler, verifier *SignatureVerifier) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/health", h.Health)

		v1.Get("/scheduler/status", h.SchedulerStatus)
		v1.Post("/scheduler/start", h.SchedulerStart)
		v1.Post("/scheduler/stop", h.SchedulerStop)

		v1.Get("/messages", h.ListMessages)
		v1.Get("/questions", h.ListQuestions)
		v1.Post("/questionnaire/dispatch", h.Dispatch)

		v1.Route("/webhooks/twilio", func(wh chi.Router) {
			if verifier != nil {
				wh.Use(verifier.Middleware)
			}
			wh.Post("/inbound", h.TwilioInbound)
			wh.Post("/status", h.TwilioStatus)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("sms-questionnaire"))
	})

	return r
}
