package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trivia-quiz-service/internal/app"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Largest inbound frame; a finished game transcript fits well within it.
	maxMessageSize = 64 << 10
	sendBuffer     = 16
)

// WSHandler streams questions of one session over a WebSocket.
type WSHandler struct {
	service  *app.GameService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if strings.EqualFold(allowed, origin) {
						return true
					}
				}
				return false
			},
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades GET /ws?sessionId=... once the session is known, then answers
// "next" with a question and "end" with the saved game.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	cfg, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Str("session_id", sessionID).Logger()
	send := make(chan outboundMessage, sendBuffer)
	writerDone := make(chan struct{})

	// Single writer; gorilla connections do not support concurrent writes.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer func() {
			ticker.Stop()
			// Unblocks the reader when the peer stopped reading.
			conn.Close()
			close(writerDone)
		}()
		for {
			select {
			case msg, ok := <-send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug().Err(err).Msg("ws write error")
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	push := func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if !push(outboundMessage{Type: "ready", Payload: cfg}) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("ws read error")
			}
			break
		}
		var reply outboundMessage
		switch inbound.Type {
		case "next":
			q, err := h.service.Next(r.Context(), sessionID)
			if err != nil {
				reply = errorMessage(err)
				break
			}
			reply = outboundMessage{Type: "question", Payload: q}
		case "end":
			var in app.EndGameInput
			if err := json.Unmarshal(inbound.Payload, &in); err != nil {
				reply = outboundMessage{Type: "error", Payload: errorPayload{Code: "INVALID_INPUT", Message: "invalid end payload"}}
				break
			}
			in.SessionID = sessionID
			game, err := h.service.EndAndSaveGame(r.Context(), in)
			if err != nil {
				reply = errorMessage(err)
				break
			}
			reply = outboundMessage{Type: "saved", Payload: game}
		default:
			reply = outboundMessage{Type: "error", Payload: errorPayload{Code: "INVALID_INPUT", Message: "unsupported message type"}}
		}
		if !push(reply) {
			break
		}
	}

	close(send)
	<-writerDone
}

func errorMessage(err error) outboundMessage {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	return outboundMessage{Type: "error", Payload: errorPayload{Code: code, Message: message}}
}
