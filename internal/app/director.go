package app

import (
	"context"
	"errors"
	"log"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/engine/phase"
	"cluehunt-service/internal/store"
)

// DefaultDirectorTick is the cadence at which the director advances timers.
// It has to be comfortably below the reveal interval or the correction
// animation stutters.
const DefaultDirectorTick = 100 * time.Millisecond

// Director is the server-hosted privileged surface. It runs the phase
// controller with admin rights so sessions advance through correction,
// scoreboard and the next round even when no admin screen is open, and it
// times out players who never answered.
type Director struct {
	entities store.EntityStore
	ops      store.Ops
	ctrl     *phase.Controller
	interval time.Duration

	dirty chan struct{}

	// Set for the lifetime of Run; hooks fire on Run's goroutine only.
	runCtx context.Context
}

func NewDirector(entities store.EntityStore, ops store.Ops, questions phase.QuestionSource, timings phase.Timings) *Director {
	d := &Director{
		entities: entities,
		ops:      ops,
		interval: DefaultDirectorTick,
		dirty:    make(chan struct{}, 1),
	}
	actor := store.Actor{Privileged: true}
	d.ctrl = phase.NewController(ops, questions, actor, timings, phase.Hooks{
		SubPhaseChanged: func(sub phase.SubPhase) {
			log.Printf("director: sub-phase %s", sub)
		},
		RoundStarted: func(r phase.Round) {
			log.Printf("director: round started question=%s", r.Question.ID)
		},
		TimeEnd: d.timeOutStragglers,
		Finished: func() {
			log.Printf("director: session finished")
		},
	})
	return d
}

// Run drives the controller until ctx is cancelled. Snapshots are re-fetched
// on every store notification; notifications only say "something changed",
// so they coalesce freely.
func (d *Director) Run(ctx context.Context) error {
	d.runCtx = ctx
	cancelSessions := d.entities.Subscribe(store.Sessions, func(store.Event) { d.signal() })
	defer cancelSessions()
	cancelPlayers := d.entities.Subscribe(store.Players, func(store.Event) { d.signal() })
	defer cancelPlayers()

	// Prime with current state so a restart resumes mid-session.
	d.refresh(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.dirty:
			d.refresh(ctx)
		case <-ticker.C:
			d.ctrl.Tick(ctx)
		}
	}
}

func (d *Director) signal() {
	select {
	case d.dirty <- struct{}{}:
	default:
	}
}

func (d *Director) refresh(ctx context.Context) {
	snap := phase.Snapshot{}
	session, err := d.entities.CurrentSession(ctx)
	switch {
	case err == nil:
		snap.Session = &session
	case errors.Is(err, domain.ErrSessionNotFound):
	default:
		log.Printf("director: fetch session: %v", err)
		return
	}
	players, err := d.entities.ListPlayers(ctx)
	if err != nil {
		log.Printf("director: fetch players: %v", err)
		return
	}
	snap.Players = players
	d.ctrl.ApplySnapshot(ctx, snap)
}

// timeOutStragglers records a timeout for every bound player who has not
// answered when the round timer expires. A player's own submit may race
// this; whichever write lands second still leaves the player ready, so the
// session converges either way.
func (d *Director) timeOutStragglers() {
	ctx := d.runCtx
	session := d.ctrl.Session()
	if session == nil {
		return
	}
	for _, p := range d.ctrl.Players() {
		if p.SessionID != session.ID || p.Ready {
			continue
		}
		err := d.ops.SubmitPlayerAnswer(ctx, store.Actor{Privileged: true}, store.SubmitAnswerArgs{
			PlayerID:  p.ID,
			SessionID: session.ID,
			Action:    domain.ActionTimeOutAnswer,
			// The server cannot see the player's local penalty tally; a bare
			// timeout is recorded instead.
		})
		if err != nil {
			log.Printf("director: time out player %s: %v", p.ID, err)
		}
	}
}
