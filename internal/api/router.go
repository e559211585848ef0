package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/logout", apiHandler.LogoutHandler)

			// Document lifecycle
			r.Post("/document", apiHandler.UploadDocumentHandler)
			r.Delete("/document", apiHandler.CloseDocumentHandler)

			// Session settings
			r.Get("/session", apiHandler.GetSessionHandler)
			r.Put("/session", apiHandler.UpdateSessionHandler)
			r.Post("/session/reset", apiHandler.ResetHandler)

			// Conversation
			r.Post("/chat", apiHandler.ChatHandler)
			r.Post("/chat/stream", apiHandler.ChatStreamHandler)
			r.Get("/history", apiHandler.HistoryHandler)
		})
	})

	return r
}
