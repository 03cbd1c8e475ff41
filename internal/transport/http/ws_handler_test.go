package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketQuestionFlow(t *testing.T) {
	server := newTestServer(t, stubQuerier{})

	status, env := doJSON(t, http.MethodPost, server.URL+"/api/sessions", map[string]interface{}{
		"sessionId": "ws-1",
		"topics":    []string{"history"},
		"language":  "en",
	})
	if status != http.StatusCreated {
		t.Fatalf("new game: %d %+v", status, env.Error)
	}

	conn := dialWS(t, server.URL, "ws-1")
	defer conn.Close()

	if typ, _ := readNext(t, conn); typ != "ready" {
		t.Fatalf("expected ready, got %s", typ)
	}

	if err := conn.WriteJSON(map[string]string{"type": "next"}); err != nil {
		t.Fatalf("write next: %v", err)
	}
	typ, payload := readNext(t, conn)
	if typ != "question" {
		t.Fatalf("expected question, got %s (%s)", typ, payload)
	}
	var q struct {
		Text          string   `json:"text"`
		CorrectAnswer string   `json:"correctAnswer"`
		Options       []string `json:"options"`
	}
	if err := json.Unmarshal(payload, &q); err != nil || len(q.Options) != 4 {
		t.Fatalf("unexpected question %s (%v)", payload, err)
	}

	end := map[string]interface{}{
		"type": "end",
		"payload": map[string]interface{}{
			"userId":                 "u1",
			"numberOfQuestions":      1,
			"numberOfCorrectAnswers": 0,
			"questions": []map[string]interface{}{{
				"text":           q.Text,
				"selectedAnswer": "wrong",
				"answers": []map[string]interface{}{
					{"text": q.CorrectAnswer, "isCorrect": true},
					{"text": "wrong"},
				},
			}},
		},
	}
	if err := conn.WriteJSON(end); err != nil {
		t.Fatalf("write end: %v", err)
	}
	if typ, payload := readNext(t, conn); typ != "saved" {
		t.Fatalf("expected saved, got %s (%s)", typ, payload)
	}

	// The session was evicted when the game was saved.
	if err := conn.WriteJSON(map[string]string{"type": "next"}); err != nil {
		t.Fatalf("write next: %v", err)
	}
	typ, payload = readNext(t, conn)
	if typ != "error" || !strings.Contains(string(payload), "SESSION_NOT_FOUND") {
		t.Fatalf("expected session error, got %s (%s)", typ, payload)
	}
}

func TestWebSocketUnknownMessage(t *testing.T) {
	server := newTestServer(t, stubQuerier{})
	doJSON(t, http.MethodPost, server.URL+"/api/sessions", map[string]interface{}{
		"sessionId": "ws-2", "topics": "science", "language": "es",
	})

	conn := dialWS(t, server.URL, "ws-2")
	defer conn.Close()
	readNext(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	typ, payload := readNext(t, conn)
	if typ != "error" || !strings.Contains(string(payload), "INVALID_INPUT") {
		t.Fatalf("expected invalid input error, got %s (%s)", typ, payload)
	}
}

func TestWebSocketClosesOnOversizeFrame(t *testing.T) {
	server := newTestServer(t, stubQuerier{})
	doJSON(t, http.MethodPost, server.URL+"/api/sessions", map[string]interface{}{
		"sessionId": "ws-3", "topics": []string{"geography"}, "language": "en",
	})

	conn := dialWS(t, server.URL, "ws-3")
	defer conn.Close()
	readNext(t, conn)

	frame := `{"type":"junk","payload":"` + strings.Repeat("x", 2*maxMessageSize) + `"}`
	_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			if strings.Contains(string(data), "unsupported message type") {
				t.Fatalf("oversize frame was decoded: %s", data)
			}
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatalf("connection stayed open after oversize frame")
		}
		return
	}
}

func TestWebSocketRejectsUnknownSession(t *testing.T) {
	server := newTestServer(t, stubQuerier{})

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}

func dialWS(t *testing.T, serverURL, sessionID string) *websocket.Conn {
	t.Helper()
	u := "ws" + serverURL[len("http"):] + "/ws?sessionId=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}
