package http

import (
	"encoding/json"
	"net/http"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSHandler gives a joined player a live feed of session updates and an
// inbound channel for chat messages.
type WSHandler struct {
	service  *app.Service
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
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

type chatPayload struct {
	Message string `json:"message"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades a joined player's connection and pumps session updates.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "missing playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(playerID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// A single writer goroutine keeps concurrent writes off the connection.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- h.outbound(update):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Sends from the read loop bail out once the writer is gone, so a dead
	// writer cannot wedge the handler behind a full send buffer.
	reply := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "chat":
			var payload chatPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				if !reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid chat payload"}}) {
					break readLoop
				}
				continue
			}
			if err := h.service.ChatSend(playerID, payload.Message); err != nil {
				if !reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
					break readLoop
				}
			}
		default:
			if !reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}) {
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) outbound(update domain.SessionUpdate) outboundMessage[any] {
	if update.Type == "chat" {
		return outboundMessage[any]{Type: "chat", Payload: update.Chat}
	}
	return outboundMessage[any]{Type: "status", Payload: update.Status}
}
