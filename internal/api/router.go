package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)    // Tag each request for the access log
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/auth/anonymous", apiHandler.AnonymousSignInHandler)
		// Upload URLs are embedded in <img> tags, so files are served without a token.
		r.Get("/files/*", apiHandler.FileHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Provider proxies
			r.Post("/togetherai", apiHandler.CompletionProxyHandler)
			r.Post("/search", apiHandler.SearchProxyHandler)
			r.Post("/image/analysis", apiHandler.ImageAnalysisHandler)
			r.Post("/image/{kind}", apiHandler.ImageProxyHandler)
			r.Post("/upload", apiHandler.UploadHandler)

			// Current conversation
			r.Get("/chat", apiHandler.GetChatHandler)
			r.Post("/chat/messages", apiHandler.PostMessageHandler)
			r.Post("/chat/new", apiHandler.NewChatHandler)

			// Session history
			r.Get("/sessions", apiHandler.ListSessionsHandler)
			r.Post("/sessions/{sessionID}/open", apiHandler.OpenSessionHandler)
			r.Delete("/sessions/{sessionID}", apiHandler.DeleteSessionHandler)

			// Preference routes
			r.Get("/preferences", apiHandler.GetPreferencesHandler)
			r.Put("/preferences", apiHandler.PutPreferencesHandler)
		})
	})

	return r
}
