// Package httpapi exposes sessions over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"adaptive-meal-planner/internal/config"
	"adaptive-meal-planner/internal/metrics"
	"adaptive-meal-planner/internal/session"
)

const readTimeout = 10 * time.Second

// API serves the session routes.
type API struct {
	store             *session.Store
	tokens            *TokenIssuer
	generationTimeout time.Duration
	dataDir           string
}

func NewAPI(store *session.Store, cfg *config.Config) *API {
	return &API{
		store:             store,
		tokens:            NewTokenIssuer([]byte(cfg.SessionSigningKey), cfg.SessionTTL),
		generationTimeout: cfg.GenerationTimeout,
		dataDir:           filepath.Dir(cfg.DatabasePath),
	}
}

// Router builds the chi router with middleware and all routes mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})
	r.Use(corsMiddleware.Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", a.CreateSession)

		r.Route("/session", func(r chi.Router) {
			r.Use(a.sessionAuth)

			// Generation calls carry their own deadline.
			r.Put("/profile", a.SubmitProfile)
			r.Post("/plan/regenerate", a.RegeneratePlan)
			r.Put("/logs/{dayIndex}", a.SubmitLog)
			r.Get("/events", a.SessionEvents)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(readTimeout))
				r.Get("/", a.GetSession)
				r.Delete("/", a.DeleteSession)
				r.Post("/profile/edit", a.EditProfile)
				r.Get("/plan", a.GetPlan)
				r.Get("/plan/days/{dayIndex}", a.GetDay)
				r.Get("/logs", a.ListLogs)
				r.Get("/logs/{dayIndex}", a.GetLog)
				r.Get("/analysis", a.GetAnalysis)
				r.Delete("/analysis", a.DismissAnalysis)
			})
		})
	})

	r.Get("/health", a.Health)
	return r
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"system": metrics.GetSysHealth(a.dataDir, a.store.Len()),
	})
}

// generationContext applies the configured deadline to a backend call.
// A client that disconnects does not cancel the call; it runs to
// completion or failure and its result still lands in the session.
func (a *API) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if a.generationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.generationTimeout)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
