package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"cluehunt-service/internal/app"
	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/engine/answer"
	"cluehunt-service/internal/engine/lobby"
	"cluehunt-service/internal/engine/phase"
	"cluehunt-service/internal/engine/score"
	"cluehunt-service/internal/store"
	"github.com/gorilla/websocket"
)

// tickInterval is the surface loop cadence. It sits under the correction
// reveal interval so letter reveals stream smoothly.
const tickInterval = 50 * time.Millisecond

type claimPayload struct {
	Role string `json:"role"`
}

type inputPayload struct {
	Op    string `json:"op"`
	Char  string `json:"char,omitempty"`
	Delta int    `json:"delta,omitempty"`
	Pos   int    `json:"pos,omitempty"`
}

type roundPayload struct {
	QuestionIndex  int      `json:"questionIndex"`
	TotalQuestions int      `json:"totalQuestions"`
	ThemeTag       string   `json:"themeTag"`
	Images         []string `json:"images"`
	Letters        []string `json:"letters"`
	Width          int      `json:"width"`
}

type statePayload struct {
	Slots     []string `json:"slots"`
	Cursor    int      `json:"cursor"`
	Penalties int      `json:"penalties"`
	Locked    bool     `json:"locked"`
}

// playerConn is one player's server-side surface: its own phase controller
// and answer machine, driven by a single event loop goroutine. Nothing here
// is shared across connections, so no locking is needed.
type playerConn struct {
	h        *WSHandler
	ctx      context.Context
	send     chan outboundMessage
	playerID string

	ctrl      *phase.Controller
	machine   *answer.Machine
	submitted bool

	lastRemaining int
	lastRevealed  string
	imagesShown   bool
}

func (h *WSHandler) servePlayer(r *http.Request, conn *websocket.Conn) {
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
		RoundStarted:    pc.onRoundStarted,
		TimeEnd:         pc.onTimeEnd,
		Finished:        pc.onFinished,
	})

	// Resume an existing identity if the client presents one. A missing
	// profile means the game was reset: the client must return to role
	// selection.
	if id := r.URL.Query().Get("playerId"); id != "" {
		switch err := h.lobby.CheckProfile(ctx, id); {
		case err == nil:
			pc.playerID = id
		case errors.Is(err, domain.ErrPlayerNotFound):
			pc.emit(outboundMessage{Type: "profileReset"})
		default:
			pc.emit(errMsg(err))
		}
	}

	dirty, cancel := h.subscribeDirty()
	defer cancel()

	pc.refresh()
	pc.emit(outboundMessage{Type: "welcome", Payload: map[string]any{
		"playerId": pc.playerID,
		"roles":    lobby.RoleBoard(pc.ctrl.Players()),
	}})

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pc.shutdown(send, writerDone)
			return
		case msg, ok := <-inbound:
			if !ok {
				pc.shutdown(send, writerDone)
				return
			}
			pc.handle(msg)
		case <-dirty:
			pc.refresh()
		case <-ticker.C:
			pc.tick()
		}
	}
}

func (pc *playerConn) shutdown(send chan outboundMessage, writerDone chan struct{}) {
	close(send)
	<-writerDone
}

// emit never blocks: a stalled socket drops messages rather than wedging
// the event loop. Every payload is re-derivable from the next snapshot.
func (pc *playerConn) emit(msg outboundMessage) {
	select {
	case pc.send <- msg:
	default:
	}
}

func (pc *playerConn) refresh() {
	snap := phase.Snapshot{}
	session, err := pc.h.entities.CurrentSession(pc.ctx)
	switch {
	case err == nil:
		snap.Session = &session
	case errors.Is(err, domain.ErrSessionNotFound):
	default:
		log.Printf("ws player: fetch session: %v", err)
		return
	}
	players, err := pc.h.entities.ListPlayers(pc.ctx)
	if err != nil {
		log.Printf("ws player: fetch players: %v", err)
		return
	}
	snap.Players = players
	pc.ctrl.ApplySnapshot(pc.ctx, snap)

	// A vanished profile means the game data was wiped underneath us.
	if pc.playerID != "" {
		if err := pc.h.lobby.CheckProfile(pc.ctx, pc.playerID); errors.Is(err, domain.ErrPlayerNotFound) {
			pc.playerID = ""
			pc.machine = nil
			pc.emit(outboundMessage{Type: "profileReset"})
			return
		}
	}

	// Outside an active round the role board is the interesting state.
	if snap.Session == nil || snap.Session.Status == domain.StatusFinished {
		pc.emit(outboundMessage{Type: "roleBoard", Payload: lobby.RoleBoard(players)})
	}
}

func (pc *playerConn) tick() {
	pc.ctrl.Tick(pc.ctx)

	switch pc.ctrl.Sub() {
	case phase.SubQuestion:
		if rem := pc.ctrl.TimeRemaining(); rem != pc.lastRemaining {
			pc.lastRemaining = rem
			pc.emit(outboundMessage{Type: "timer", Payload: map[string]int{"remaining": rem}})
		}
		if pc.imagesShown && !pc.ctrl.ImagesVisible() {
			pc.imagesShown = false
			pc.emit(outboundMessage{Type: "imagesMasked"})
		}
	case phase.SubCorrection:
		if rev := pc.ctrl.Revealed(); rev != pc.lastRevealed {
			pc.lastRevealed = rev
			pc.emit(outboundMessage{Type: "reveal", Payload: map[string]string{"revealed": rev}})
		}
	}
}

func (pc *playerConn) handle(msg inboundMessage) {
	switch msg.Type {
	case "claimRole":
		var payload claimPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			pc.emit(errMsg(domain.ErrInvalidAction))
			return
		}
		pc.claimRole(domain.Role(payload.Role))
	case "start":
		pc.startGame()
	case "input":
		var payload inputPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			pc.emit(errMsg(domain.ErrInvalidAction))
			return
		}
		pc.input(payload)
	case "validate":
		pc.validate()
	case "leave":
		pc.leave()
	default:
		pc.emit(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
	}
}

func (pc *playerConn) claimRole(role domain.Role) {
	if pc.playerID != "" {
		pc.emit(errMsg(domain.ErrPlayerExists))
		return
	}
	p, err := pc.h.lobby.ClaimRole(pc.ctx, role)
	if err != nil {
		pc.emit(errMsg(err))
		return
	}
	pc.playerID = p.ID
	pc.emit(outboundMessage{Type: "claimed", Payload: p})
}

// startGame launches a playthrough with everyone currently in the lobby.
// Several clients may race this; the losers' ErrGameAlreadyRunning is the
// expected outcome and is swallowed.
func (pc *playerConn) startGame() {
	if pc.playerID == "" {
		pc.emit(errMsg(domain.ErrNotAuthorized))
		return
	}
	order, err := pc.h.service.PrepareQuestionOrder(pc.ctx, app.QuestionsPerGame)
	if err != nil {
		pc.emit(errMsg(err))
		return
	}
	players, err := pc.h.entities.ListPlayers(pc.ctx)
	if err != nil {
		pc.emit(errMsg(err))
		return
	}
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	err = pc.h.service.StartNewGame(pc.ctx, store.Actor{PlayerID: pc.playerID}, store.StartGameArgs{
		QuestionIDs:    order,
		TotalQuestions: len(order),
		PlayerIDs:      ids,
	})
	if err != nil && !errors.Is(err, domain.ErrGameAlreadyRunning) {
		pc.emit(errMsg(err))
	}
}

func (pc *playerConn) input(payload inputPayload) {
	if pc.machine == nil || pc.submitted {
		return
	}
	switch payload.Op {
	case "insert":
		runes := []rune(payload.Char)
		if len(runes) != 1 {
			return
		}
		if pc.machine.Insert(runes[0]) {
			pc.emit(outboundMessage{Type: "penalty", Payload: map[string]int{
				"penalties": pc.machine.Penalties(),
				"amount":    score.PenaltyAmount,
			}})
		}
	case "delete":
		pc.machine.Delete()
	case "moveCursor":
		pc.machine.MoveCursor(payload.Delta)
	case "setCursor":
		pc.machine.SetCursor(payload.Pos)
	default:
		return
	}
	pc.emitState()
}

// validate is the player's explicit submit. An incomplete board stays
// editable: the player gets a corrective message and keeps typing. A full
// board at this point always matches the key, since a full mismatch is
// cleared with a penalty at insertion time.
func (pc *playerConn) validate() {
	if pc.machine == nil || pc.submitted {
		return
	}
	if !pc.machine.Validate() {
		pc.emit(outboundMessage{Type: "invalid", Payload: errorPayload{Message: "answer incomplete or incorrect"}})
		return
	}
	pc.submitValidated()
	pc.emitState()
}

func (pc *playerConn) emitState() {
	pc.emit(outboundMessage{Type: "state", Payload: statePayload{
		Slots:     pc.machine.Slots(),
		Cursor:    pc.machine.Cursor(),
		Penalties: pc.machine.Penalties(),
		Locked:    pc.machine.Locked(),
	}})
}

func (pc *playerConn) submitValidated() {
	remaining := pc.ctrl.TimeRemaining()
	penalties := pc.machine.Penalties()
	pc.ctrl.StopTimer()
	pc.submitted = true

	err := pc.h.service.SubmitPlayerAnswer(pc.ctx, store.Actor{PlayerID: pc.playerID}, store.SubmitAnswerArgs{
		PlayerID:      pc.playerID,
		SessionID:     pc.sessionID(),
		Action:        domain.ActionSubmitAnswer,
		PenaltyCount:  penalties,
		TimeRemaining: remaining,
	})
	if err != nil {
		pc.emit(errMsg(err))
		return
	}
	pc.emit(outboundMessage{Type: "validated", Payload: map[string]int{
		"scoreDelta":    score.FinalScore(remaining, penalties),
		"timeRemaining": remaining,
	}})
}

func (pc *playerConn) leave() {
	if pc.playerID == "" {
		return
	}
	if err := pc.h.lobby.Leave(pc.ctx, pc.playerID); err != nil {
		pc.emit(errMsg(err))
		return
	}
	pc.playerID = ""
	pc.machine = nil
	pc.emit(outboundMessage{Type: "left"})
}

func (pc *playerConn) onSubPhase(sub phase.SubPhase) {
	pc.emit(outboundMessage{Type: "phase", Payload: map[string]string{"sub": string(sub)}})
	if sub == phase.SubScoreboard {
		pc.emitScoreboard("scoreboard")
	}
}

func (pc *playerConn) onRoundStarted(round phase.Round) {
	pc.submitted = false
	pc.lastRemaining = -1
	pc.lastRevealed = ""
	pc.imagesShown = true
	pc.machine = answer.New(round.Question.AnswerKey, func() bool {
		return pc.ctrl.Sub() == phase.SubQuestion && pc.ctrl.TimerRunning()
	})

	sess := pc.ctrl.Session()
	payload := roundPayload{
		ThemeTag: round.Question.ThemeTag,
		Images:   round.Images,
		Letters:  round.Letters,
		Width:    pc.machine.Width(),
	}
	if sess != nil {
		payload.QuestionIndex = sess.QuestionIndex
		payload.TotalQuestions = sess.TotalQuestions
	}
	pc.emit(outboundMessage{Type: "round", Payload: payload})
}

// onTimeEnd locks the machine and records a timeout for this player. The
// director also sweeps stragglers; whoever lands first wins and the other
// write is a no-op.
func (pc *playerConn) onTimeEnd() {
	if pc.machine == nil {
		return
	}
	pc.machine.LockTimeout()
	if pc.playerID == "" || pc.submitted {
		return
	}
	pc.submitted = true
	penalties := pc.machine.Penalties()
	err := pc.h.service.SubmitPlayerAnswer(pc.ctx, store.Actor{PlayerID: pc.playerID}, store.SubmitAnswerArgs{
		PlayerID:     pc.playerID,
		SessionID:    pc.sessionID(),
		Action:       domain.ActionTimeOutAnswer,
		PenaltyCount: penalties,
	})
	if err != nil {
		pc.emit(errMsg(err))
		return
	}
	pc.emit(outboundMessage{Type: "timeUp", Payload: map[string]int{
		"scoreDelta": score.TimeoutScore(penalties),
	}})
}

func (pc *playerConn) onFinished() {
	pc.emitScoreboard("finished")
}

func (pc *playerConn) emitScoreboard(msgType string) {
	ranked, err := pc.h.service.Leaderboard(pc.ctx, pc.sessionID())
	if err != nil {
		pc.emit(errMsg(err))
		return
	}
	pc.emit(outboundMessage{Type: msgType, Payload: ranked})
}

func (pc *playerConn) sessionID() string {
	if sess := pc.ctrl.Session(); sess != nil {
		return sess.ID
	}
	return ""
}
