package http

import (
	"encoding/json"
	"log"
	"net/http"

	"cluehunt-service/internal/app"
	"cluehunt-service/internal/engine/lobby"
	"cluehunt-service/internal/engine/phase"
	"cluehunt-service/internal/store"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades HTTP requests to websockets and wires them into the
// game surfaces. Three surfaces share the endpoint, selected by the
// ?surface= query parameter:
//
//	player  (default)  role claim, answer input, round events
//	public             read-only phase and scoreboard stream
//	admin              start/advance/reset, gated by the admin token
type WSHandler struct {
	entities   store.EntityStore
	service    *app.GameService
	lobby      *lobby.Coordinator
	questions  phase.QuestionSource
	timings    phase.Timings
	adminToken string
	upgrader   websocket.Upgrader
}

func NewWSHandler(entities store.EntityStore, service *app.GameService, lob *lobby.Coordinator, questions phase.QuestionSource, timings phase.Timings, adminToken string) *WSHandler {
	return &WSHandler{
		entities:   entities,
		service:    service,
		lobby:      lob,
		questions:  questions,
		timings:    timings,
		adminToken: adminToken,
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

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errMsg(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

// ServeWS dispatches an upgraded connection to its surface loop.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	surface := r.URL.Query().Get("surface")
	if surface == "" {
		surface = "player"
	}
	if surface == "admin" && r.URL.Query().Get("token") != h.adminToken {
		http.Error(w, "bad admin token", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	switch surface {
	case "player":
		h.servePlayer(r, conn)
	case "public":
		h.servePublic(r, conn)
	case "admin":
		h.serveAdmin(r, conn)
	default:
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: "unknown surface"}})
	}
}

// startWriter owns all writes to the socket. Everything else talks to the
// send channel; closing it stops the writer.
func startWriter(conn *websocket.Conn) (send chan outboundMessage, done chan struct{}) {
	send = make(chan outboundMessage, 32)
	done = make(chan struct{})
	go func() {
		defer close(done)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()
	return send, done
}

// startReader pumps inbound frames into a channel so the surface loop can
// select over socket input, store events and its tick cadence at once. The
// channel closes when the socket does.
func startReader(conn *websocket.Conn) chan inboundMessage {
	inbound := make(chan inboundMessage, 16)
	go func() {
		defer close(inbound)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			inbound <- msg
		}
	}()
	return inbound
}
