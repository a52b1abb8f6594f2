package http

import (
	"encoding/json"
	"log"
	"net/http"

	"exam-session-service/internal/app"
	"github.com/gorilla/websocket"
)

// WSHandler runs an interactive exam sitting over a websocket: the client
// receives its materialized test on connect, streams answers one question
// at a time, and gets the updated attempt snapshot after each one.
type WSHandler struct {
	bank     *app.BankService
	engine   *app.AttemptEngine
	upgrader websocket.Upgrader
}

func NewWSHandler(bank *app.BankService, engine *app.AttemptEngine) *WSHandler {
	return &WSHandler{
		bank:   bank,
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID        string   `json:"questionId"`
	QuestionNumber    int      `json:"questionNumber"`
	SelectedAnswerIDs []string `json:"selectedAnswerIds"`
	ElapsedTime       string   `json:"elapsedTime"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and drives one exam sitting. Only the read
// loop writes to the connection, so no writer goroutine is needed.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	collectionID := r.URL.Query().Get("collectionId")
	if userID == "" || collectionID == "" {
		http.Error(w, "missing userId or collectionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	test, err := h.bank.ComposeTest(r.Context(), collectionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	if err := conn.WriteJSON(outboundMessage[any]{Type: "test", Payload: test}); err != nil {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			attempt, err := h.engine.SubmitAnswer(r.Context(), app.SubmitAnswerInput{
				UserID:            userID,
				QuestionID:        payload.QuestionID,
				QuestionNumber:    payload.QuestionNumber,
				SelectedAnswerIDs: payload.SelectedAnswerIDs,
				ElapsedTime:       payload.ElapsedTime,
			})
			if err != nil {
				_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "attempt", Payload: attempt}); err != nil {
				return
			}
			if attempt.HasFinished {
				_ = conn.WriteJSON(outboundMessage[any]{Type: "finished", Payload: attempt})
				return
			}
		default:
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}
}
