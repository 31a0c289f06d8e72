package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether the API key is enforced.
// trustProxy keys rate limiting on X-Forwarded-For / X-Real-IP.
// cors computes the allowed origin for every route, preflights included.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Runner, authEnabled bool, key string, trustProxy bool, cors *CORSPolicy, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, trustProxy)

	r := chi.NewRouter()
	r.Use(cors.Middleware)
	r.Use(AuthMiddleware(authEnabled, key))

	r.Post("/brain-reset", h.BrainReset)

	// Stage events (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
