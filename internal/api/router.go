package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/starford/casemap/internal/mapservice"
)

// NewRouter creates the /api router.
// sseHandler, if non-nil, is mounted at GET /events behind the same auth.
func NewRouter(svc *mapservice.Service, authEnabled bool, token string, corsOrigins []string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "If-Match"},
			ExposedHeaders: []string{"ETag"},
			MaxAge:         300,
		}))
	}
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/mindmaps", h.ListMaps)
	r.Get("/mindmaps/{caseId}", h.GetMap)
	r.Post("/mindmaps/{caseId}", h.SaveMap)
	r.Delete("/mindmaps/{caseId}", h.DeleteMap)

	r.Get("/search", h.Search)

	r.Get("/cases", h.ListCases)
	r.Get("/cases/{caseId}", h.GetCase)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}
	return r
}
