package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"trivia-quiz-service/internal/app"
)

// NewRouter wires the REST and WebSocket endpoints of the game service.
func NewRouter(service *app.GameService, log zerolog.Logger, allowedOrigins []string) http.Handler {
	h := NewHandler(service)
	ws := NewWSHandler(service, log, allowedOrigins)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("bytes", size).
			Dur("duration", duration).
			Msg("http request")
	}))
	r.Use(middleware.Recoverer)

	origins := allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.handleHealth)
	// Long-lived connection; kept out of the request timeout.
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/sessions", h.handleNewGame)
		r.Get("/sessions/{sessionId}/next", h.handleNext)

		r.Post("/games", h.handleEndGame)
		r.Get("/games/{gameId}/questions", h.handleGameQuestions)

		r.Get("/users/{userId}/games", h.handleGameHistory)
		r.Get("/questions", h.handleGenerate)
	})

	return r
}
