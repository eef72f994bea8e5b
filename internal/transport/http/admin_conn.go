package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"cluehunt-service/internal/app"
	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/engine/lobby"
	"cluehunt-service/internal/engine/phase"
	"cluehunt-service/internal/store"
	"github.com/gorilla/websocket"
)

var adminActor = store.Actor{Privileged: true}

// servePublic is the read-only spectator surface: the shared screen that
// shows the role board, round clues, correction reveal and scoreboard. It
// runs a phase controller like a player but accepts no input and holds no
// identity.
func (h *WSHandler) servePublic(r *http.Request, conn *websocket.Conn) {
	// Reuse the player loop with no identity. Input messages are rejected
	// per-op because playerID stays empty and no machine is ever built, but
	// the cleanest read is to simply drain inbound frames.
	ctx := r.Context()
	send, writerDone := startWriter(conn)
	inbound := startReader(conn)

	pc := &playerConn{
		h:             h,
		ctx:           ctx,
		send:          send,
		lastRemaining: -1,
	}
	pc.ctrl = phase.NewController(h.service, h.questions, store.Actor{}, h.timings, phase.Hooks{
		SubPhaseChanged: pc.onSubPhase,
		RoundStarted:    pc.onPublicRound,
		Finished:        pc.onFinished,
	})

	dirty, cancel := h.subscribeDirty()
	defer cancel()

	pc.refresh()
	pc.emit(outboundMessage{Type: "welcome", Payload: map[string]any{
		"roles": lobby.RoleBoard(pc.ctrl.Players()),
	}})

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pc.shutdown(send, writerDone)
			return
		case _, ok := <-inbound:
			if !ok {
				pc.shutdown(send, writerDone)
				return
			}
		case <-dirty:
			pc.refresh()
		case <-ticker.C:
			pc.tick()
		}
	}
}

// onPublicRound announces rounds without building an answer machine; the
// public screen shows clues and the countdown, never the slots.
func (pc *playerConn) onPublicRound(round phase.Round) {
	pc.lastRemaining = -1
	pc.lastRevealed = ""
	pc.imagesShown = true
	payload := roundPayload{
		ThemeTag: round.Question.ThemeTag,
		Images:   round.Images,
		Letters:  round.Letters,
		Width:    len([]rune(round.Question.AnswerKey)),
	}
	if sess := pc.ctrl.Session(); sess != nil {
		payload.QuestionIndex = sess.QuestionIndex
		payload.TotalQuestions = sess.TotalQuestions
	}
	pc.emit(outboundMessage{Type: "round", Payload: payload})
}

// serveAdmin exposes the privileged operations. The token was checked
// before the upgrade.
func (h *WSHandler) serveAdmin(r *http.Request, conn *websocket.Conn) {
	ctx := r.Context()
	send, writerDone := startWriter(conn)
	inbound := startReader(conn)

	emit := func(msg outboundMessage) {
		select {
		case send <- msg:
		default:
		}
	}

	dirty, cancel := h.subscribeDirty()
	defer cancel()

	h.emitAdminState(ctx, emit)

	for {
		select {
		case <-ctx.Done():
			close(send)
			<-writerDone
			return
		case msg, ok := <-inbound:
			if !ok {
				close(send)
				<-writerDone
				return
			}
			h.handleAdmin(ctx, msg, emit)
		case <-dirty:
			h.emitAdminState(ctx, emit)
		}
	}
}

func (h *WSHandler) handleAdmin(ctx context.Context, msg inboundMessage, emit func(outboundMessage)) {
	switch msg.Type {
	case "start":
		h.adminStart(ctx, emit)
	case "advance":
		session, err := h.entities.CurrentSession(ctx)
		if err != nil {
			emit(errMsg(err))
			return
		}
		if err := h.service.AdvanceToNextQuestion(ctx, adminActor, session.ID); err != nil {
			emit(errMsg(err))
			return
		}
		emit(outboundMessage{Type: "advanced"})
	case "reset":
		if err := h.service.ResetGameData(ctx, adminActor); err != nil {
			emit(errMsg(err))
			return
		}
		emit(outboundMessage{Type: "resetDone"})
	default:
		emit(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
	}
}

func (h *WSHandler) adminStart(ctx context.Context, emit func(outboundMessage)) {
	order, err := h.service.PrepareQuestionOrder(ctx, app.QuestionsPerGame)
	if err != nil {
		emit(errMsg(err))
		return
	}
	players, err := h.entities.ListPlayers(ctx)
	if err != nil {
		emit(errMsg(err))
		return
	}
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	err = h.service.StartNewGame(ctx, adminActor, store.StartGameArgs{
		QuestionIDs:    order,
		TotalQuestions: len(order),
		PlayerIDs:      ids,
	})
	if err != nil {
		emit(errMsg(err))
		return
	}
	emit(outboundMessage{Type: "started"})
}

// emitAdminState pushes the current session and leaderboard after every
// store change.
func (h *WSHandler) emitAdminState(ctx context.Context, emit func(outboundMessage)) {
	sessionID := ""
	session, err := h.entities.CurrentSession(ctx)
	switch {
	case err == nil:
		sessionID = session.ID
		emit(outboundMessage{Type: "session", Payload: session})
	case errors.Is(err, domain.ErrSessionNotFound):
		emit(outboundMessage{Type: "session"})
	default:
		log.Printf("ws admin: fetch session: %v", err)
		return
	}
	ranked, err := h.service.Leaderboard(ctx, sessionID)
	if err != nil {
		log.Printf("ws admin: leaderboard: %v", err)
		return
	}
	emit(outboundMessage{Type: "leaderboard", Payload: ranked})
}

func (h *WSHandler) subscribeDirty() (chan struct{}, func()) {
	dirty := make(chan struct{}, 1)
	signal := func(store.Event) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}
	cancelPlayers := h.entities.Subscribe(store.Players, signal)
	cancelSessions := h.entities.Subscribe(store.Sessions, signal)
	return dirty, func() {
		cancelPlayers()
		cancelSessions()
	}
}
