package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const staffTokenHeader = "X-Staff-Token"

// NewRouter mounts the public link endpoints and the staff API. metrics may be
// nil when no registry is exposed.
func NewRouter(h *Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/actions", h.DescribeAction)
		r.Post("/actions", h.SubmitAction)

		r.Group(func(r chi.Router) {
			r.Use(requireStaffToken(h.cfg.StaffAPIToken))

			r.Post("/submissions", h.CreateSubmission)
			r.Get("/submissions", h.ListSubmissions)
			r.Route("/submissions/{submissionId}", func(r chi.Router) {
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					h.GetSubmission(w, r, chi.URLParam(r, "submissionId"))
				})
				r.Post("/transitions", func(w http.ResponseWriter, r *http.Request) {
					h.ApplyTransition(w, r, chi.URLParam(r, "submissionId"))
				})
				r.Post("/resend", func(w http.ResponseWriter, r *http.Request) {
					h.ResendLink(w, r, chi.URLParam(r, "submissionId"))
				})
			})

			r.Get("/exit-interviews", h.ListInterviews)

			r.Post("/reminders/tick", h.TickReminders)
			r.Get("/reminders/pending", h.PendingReminders)

			r.Get("/directory/leaders", h.SearchLeaders)
			r.Post("/directory/mappings", h.UploadMappings)
		})
	})

	return r
}

// requireStaffToken gates the staff API. An empty configured token closes it.
func requireStaffToken(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(staffTokenHeader)
			if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "staff token required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
