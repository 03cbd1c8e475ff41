package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// maxBodyBytes caps REST request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the REST surface of the game service.
type Handler struct {
	service *app.GameService
}

func NewHandler(service *app.GameService) *Handler {
	return &Handler{service: service}
}

// handleNewGame configures a session: POST /api/sessions
func (h *Handler) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var in app.NewGameInput
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	cfg, err := h.service.NewGame(r.Context(), in)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, cfg)
}

// handleNext generates the next question of a session: GET /api/sessions/{sessionId}/next
func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Next(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, q)
}

// handleEndGame persists a finished game: POST /api/games
func (h *Handler) handleEndGame(w http.ResponseWriter, r *http.Request) {
	var in app.EndGameInput
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	game, err := h.service.EndAndSaveGame(r.Context(), in)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, game)
}

// handleGameQuestions lists the questions of a game: GET /api/games/{gameId}/questions
func (h *Handler) handleGameQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.GameQuestions(r.Context(), chi.URLParam(r, "gameId"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, questions)
}

// handleGameHistory lists a user's games: GET /api/users/{userId}/games
func (h *Handler) handleGameHistory(w http.ResponseWriter, r *http.Request) {
	games, err := h.service.GameHistory(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, games)
}

// handleGenerate builds a question without a session: GET /api/questions?topics=a,b&lang=en
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	lang := domain.LanguageEN
	if raw := r.URL.Query().Get("lang"); raw != "" {
		parsed, err := domain.ParseLanguage(raw)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		lang = parsed
	}
	q, err := h.service.Generate(r.Context(), domain.ParseTopics(r.URL.Query().Get("topics")), lang)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, q)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
