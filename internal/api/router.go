package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigin string
	Metrics       http.Handler // served on /metrics when set
}

func NewRouter(apiHandler *APIHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	origin := cfg.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Get("/dashboard", apiHandler.DashboardHandler)
		r.Get("/sessions", apiHandler.ListSessionsHandler)
		r.Get("/sessions/{sessionID}", apiHandler.GetSessionHandler)

		// Conversation routes
		r.Route("/chat/{sessionID}", func(r chi.Router) {
			r.Post("/start", apiHandler.StartChatHandler)
			r.Get("/", apiHandler.GetChatHandler)
			r.Post("/select", apiHandler.SelectOptionHandler)
			r.Post("/other", apiHandler.SubmitOtherHandler)
			r.Post("/text", apiHandler.SubmitTextHandler)
			r.Post("/sections", apiHandler.SubmitSectionsHandler)
			r.Post("/complete", apiHandler.CompleteChatHandler)
		})

		// Transcript and summary review routes
		r.Route("/transcripts/{sessionID}", func(r chi.Router) {
			r.Get("/", apiHandler.GetTranscriptHandler)
			r.Post("/save", apiHandler.SaveTranscriptHandler)
			r.Get("/summary", apiHandler.GetSummaryHandler)
			r.Post("/summary", apiHandler.GenerateSummaryHandler)
			r.Post("/summary/regenerate", apiHandler.RegenerateSummaryHandler)
			r.Post("/summary/selection", apiHandler.SelectionHandler)
			r.Delete("/summary/selection", apiHandler.ClearSelectionHandler)
			r.Post("/summary/comments", apiHandler.AddCommentHandler)
			r.Delete("/summary/comments/{commentID}", apiHandler.DeleteCommentHandler)
		})

		// Department tagging routes
		r.Route("/tagging/{sessionID}", func(r chi.Router) {
			r.Get("/", apiHandler.GetTaggingHandler)
			r.Post("/toggle", apiHandler.ToggleDepartmentHandler)
			r.Post("/notes", apiHandler.SetNotesHandler)
			r.Post("/send", apiHandler.SendRoutingHandler)
		})
	})

	return r
}
