package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/templates"
)

type stubQuerier struct {
	err error
}

func (q stubQuerier) Execute(context.Context, string) ([]domain.Candidate, error) {
	if q.err != nil {
		return nil, q.err
	}
	return []domain.Candidate{
		{Label: "Madrid", ResourceURL: "http://img/madrid.jpg"},
		{Label: "Paris"}, {Label: "Rome"}, {Label: "Lisbon"},
	}, nil
}

func newTestServer(t *testing.T, querier app.KnowledgeQuerier) *httptest.Server {
	t.Helper()
	store, err := templates.LoadDefault()
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	gen := app.NewGenerator(store, querier, zerolog.Nop())
	service := app.NewGameService(memory.NewSessionCache(time.Hour), gen, memory.NewGameRepository(), store, zerolog.Nop())
	server := httptest.NewServer(NewRouter(service, zerolog.Nop(), nil))
	t.Cleanup(server.Close)
	return server
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

func doJSON(t *testing.T, method, url string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, env
}

func TestGameFlowOverREST(t *testing.T) {
	server := newTestServer(t, stubQuerier{})

	status, env := doJSON(t, http.MethodPost, server.URL+"/api/sessions", map[string]interface{}{
		"sessionId": "s1",
		"topics":    "geography",
		"language":  "es",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%+v)", status, env.Error)
	}

	status, env = doJSON(t, http.MethodGet, server.URL+"/api/sessions/s1/next", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", status, env.Error)
	}
	var q domain.GeneratedQuestion
	if err := json.Unmarshal(env.Data, &q); err != nil {
		t.Fatalf("decode question: %v", err)
	}
	if len(q.Options) != 4 || q.Language != domain.LanguageES {
		t.Fatalf("unexpected question %+v", q)
	}

	status, env = doJSON(t, http.MethodPost, server.URL+"/api/games", map[string]interface{}{
		"sessionId":              "s1",
		"userId":                 "u1",
		"numberOfQuestions":      1,
		"numberOfCorrectAnswers": 1,
		"points":                 50,
		"questions": []map[string]interface{}{{
			"text":           q.Text,
			"selectedAnswer": q.CorrectAnswer,
			"topics":         q.Topics,
			"answers": []map[string]interface{}{
				{"text": q.CorrectAnswer, "isCorrect": true},
				{"text": "Nowhere", "isCorrect": false},
			},
		}},
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%+v)", status, env.Error)
	}
	var game domain.GameRecord
	if err := json.Unmarshal(env.Data, &game); err != nil {
		t.Fatalf("decode game: %v", err)
	}

	status, env = doJSON(t, http.MethodGet, server.URL+"/api/users/u1/games", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var history []domain.GameSummary
	if err := json.Unmarshal(env.Data, &history); err != nil || len(history) != 1 || history[0].ID != game.ID {
		t.Fatalf("unexpected history %s (%v)", env.Data, err)
	}

	status, env = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/games/%s/questions", server.URL, game.ID), nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var questions []domain.QuestionRecord
	if err := json.Unmarshal(env.Data, &questions); err != nil || len(questions) != 1 || questions[0].Text != q.Text {
		t.Fatalf("unexpected questions %s (%v)", env.Data, err)
	}

	// The finished session is gone.
	status, env = doJSON(t, http.MethodGet, server.URL+"/api/sessions/s1/next", nil)
	if status != http.StatusNotFound || env.Error == nil || env.Error.Code != "SESSION_NOT_FOUND" {
		t.Fatalf("expected session not found, got %d %+v", status, env.Error)
	}
}

func TestErrorMapping(t *testing.T) {
	server := newTestServer(t, stubQuerier{})
	down := newTestServer(t, stubQuerier{err: domain.ErrUpstreamUnavailable})
	abandoned := newTestServer(t, stubQuerier{err: context.DeadlineExceeded})

	cases := []struct {
		name   string
		method string
		url    string
		body   interface{}
		status int
		code   string
	}{
		{"unknown session", http.MethodGet, server.URL + "/api/sessions/nope/next", nil, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"bad language", http.MethodPost, server.URL + "/api/sessions", map[string]interface{}{"sessionId": "s", "topics": []string{"geography"}, "language": "de"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad body", http.MethodPost, server.URL + "/api/games", "not an object", http.StatusBadRequest, "INVALID_INPUT"},
		{"count mismatch", http.MethodPost, server.URL + "/api/games", map[string]interface{}{
			"userId": "u1", "numberOfQuestions": 3, "numberOfCorrectAnswers": 0,
			"questions": []map[string]interface{}{{"text": "q", "answers": []map[string]interface{}{{"text": "a", "isCorrect": true}, {"text": "b"}}}},
		}, http.StatusBadRequest, "INVALID_INPUT"},
		{"oversize body", http.MethodPost, server.URL + "/api/games", map[string]interface{}{
			"userId": strings.Repeat("u", maxBodyBytes+1024),
		}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown game", http.MethodGet, server.URL + "/api/games/missing/questions", nil, http.StatusNotFound, "NOT_FOUND"},
		{"unsupported lang", http.MethodGet, server.URL + "/api/questions?lang=fr", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"upstream down", http.MethodGet, down.URL + "/api/questions?topics=geography&lang=en", nil, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"caller deadline", http.MethodGet, abandoned.URL + "/api/questions?topics=geography&lang=en", nil, http.StatusGatewayTimeout, "TIMEOUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := doJSON(t, tc.method, tc.url, tc.body)
			if status != tc.status {
				t.Fatalf("expected %d, got %d (%+v)", tc.status, status, env.Error)
			}
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, env.Error)
			}
		})
	}
}

func TestGenerateWithoutSession(t *testing.T) {
	server := newTestServer(t, stubQuerier{})

	status, env := doJSON(t, http.MethodGet, server.URL+"/api/questions?topics=geography&lang=en", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", status, env.Error)
	}
	var q domain.GeneratedQuestion
	if err := json.Unmarshal(env.Data, &q); err != nil {
		t.Fatalf("decode question: %v", err)
	}
	if q.Language != domain.LanguageEN || q.CorrectAnswer == "" {
		t.Fatalf("unexpected question %+v", q)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, stubQuerier{})
	status, _ := doJSON(t, http.MethodGet, server.URL+"/healthz", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}
