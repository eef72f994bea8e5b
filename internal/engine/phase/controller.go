// Package phase drives the client-side reflection of a game session: the
// authoritative status (from the backing store) plus the derived sub-phases
// of an in-progress round. The controller never transitions session-level
// status itself; it requests privileged operations and waits for the change
// notification that confirms them.
package phase

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strings"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/engine/timer"
	"cluehunt-service/internal/store"
)

// SubPhase is the client-derived, non-persisted stage within IN_PROGRESS.
type SubPhase string

const (
	SubQuestion               SubPhase = "QUESTION"
	SubPreCorrectionCountdown SubPhase = "PRE_CORRECTION_COUNTDOWN"
	SubCorrection             SubPhase = "CORRECTION"
	SubScoreboard             SubPhase = "SCOREBOARD"
	SubNextRoundCountdown     SubPhase = "NEXT_ROUND_COUNTDOWN"
)

// CluesPerRound is the fixed number of clue images shown each round.
const CluesPerRound = 3

// Timings groups every fixed sub-phase duration.
type Timings struct {
	TimeLimit                time.Duration
	ImageVisibleDuration     time.Duration
	PreCorrectionCountdown   time.Duration
	CorrectionRevealInterval time.Duration
	CorrectionDuration       time.Duration
	ScoreboardDuration       time.Duration
	NextRoundCountdown       time.Duration
}

// DefaultTimings mirrors the production game configuration.
func DefaultTimings() Timings {
	return Timings{
		TimeLimit:                30 * time.Second,
		ImageVisibleDuration:     15 * time.Second,
		PreCorrectionCountdown:   3 * time.Second,
		CorrectionRevealInterval: 150 * time.Millisecond,
		CorrectionDuration:       10 * time.Second,
		ScoreboardDuration:       10 * time.Second,
		NextRoundCountdown:       3 * time.Second,
	}
}

// Round is the round-local derived state: the question plus the per-client
// random-but-stable clue subset and shuffled letter pool. Derived exactly
// once per distinct question identity.
type Round struct {
	Question domain.Question
	Images   []string
	Letters  []string
}

// Snapshot is the full authoritative state re-fetched on every dirty signal.
// Session is nil when no session exists yet.
type Snapshot struct {
	Session *domain.Session
	Players []domain.Player
}

// QuestionSource loads question content by identity.
type QuestionSource interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// Hooks are the controller's outputs. All callbacks run on the goroutine
// that called ApplySnapshot or Tick; nil hooks are skipped.
type Hooks struct {
	// SubPhaseChanged fires on every sub-phase transition.
	SubPhaseChanged func(SubPhase)
	// RoundStarted fires once per distinct question identity with the fresh
	// round-local state.
	RoundStarted func(Round)
	// TimeEnd fires exactly once when the round timer expires locally. The
	// player surface locks its answer machine and submits a timeout here.
	TimeEnd func()
	// Finished fires once when the session reaches FINISHED.
	Finished func()
}

// Controller is the session phase state machine for one surface. It owns no
// goroutines: the surface's event loop feeds it snapshots and ticks, keeping
// everything single-threaded and cooperative.
type Controller struct {
	timings   Timings
	now       func() time.Time
	rnd       *rand.Rand
	actor     store.Actor
	ops       store.Ops
	questions QuestionSource
	hooks     Hooks

	session   *domain.Session
	players   []domain.Player
	sub       SubPhase
	round     *Round
	countdown *timer.Countdown

	correctionLatched bool
	advanceLatched    bool
	finishedLatched   bool
	deadline          time.Time
	revealStart       time.Time
	roundStart        time.Time
}

// NewController builds a controller with the system clock and a time-seeded
// shuffle source.
func NewController(ops store.Ops, questions QuestionSource, actor store.Actor, timings Timings, hooks Hooks) *Controller {
	return NewControllerWithClock(ops, questions, actor, timings, hooks,
		time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewControllerWithClock is test-only for deterministic time and shuffles.
func NewControllerWithClock(ops store.Ops, questions QuestionSource, actor store.Actor, timings Timings, hooks Hooks, now func() time.Time, rnd *rand.Rand) *Controller {
	return &Controller{
		timings:   timings,
		now:       now,
		rnd:       rnd,
		actor:     actor,
		ops:       ops,
		questions: questions,
		hooks:     hooks,
		sub:       SubQuestion,
	}
}

// ApplySnapshot feeds re-fetched authoritative state into the controller.
// It is a full re-derivation: convergent regardless of notification order,
// loss, or duplication.
func (c *Controller) ApplySnapshot(ctx context.Context, snap Snapshot) {
	c.players = snap.Players

	if snap.Session == nil {
		c.session = nil
		c.resetRound()
		return
	}
	sess := *snap.Session

	// A superseding session is a fresh playthrough.
	if c.session == nil || c.session.ID != sess.ID {
		c.resetRound()
		c.finishedLatched = false
	}
	c.session = &sess

	switch sess.Status {
	case domain.StatusFinished:
		if c.countdown != nil {
			c.countdown.Stop()
		}
		if !c.finishedLatched {
			c.finishedLatched = true
			if c.hooks.Finished != nil {
				c.hooks.Finished()
			}
		}
		return
	case domain.StatusLobby:
		c.resetRound()
		return
	}

	// IN_PROGRESS or CORRECTION_PHASE: make sure round-local state matches
	// the current question identity. The identity may not have changed yet
	// right after a local round restart; that is fine, derivation is keyed
	// on the identity, not on the notification.
	if qid := sess.CurrentQuestionID(); qid != "" {
		if c.round == nil || c.round.Question.ID != qid {
			c.deriveRound(ctx, qid, sess)
		}
	}

	if sess.Status == domain.StatusCorrectionPhase {
		c.enterCorrectionFlow()
		return
	}
	c.checkAllReady()
}

// Tick advances local timers. Call it on a steady cadence from the surface's
// event loop.
func (c *Controller) Tick(ctx context.Context) {
	if c.session == nil {
		return
	}
	now := c.now()
	switch c.sub {
	case SubQuestion:
		if c.countdown != nil && c.countdown.Tick() {
			if c.hooks.TimeEnd != nil {
				c.hooks.TimeEnd()
			}
			c.enterCorrectionFlow()
			return
		}
		c.checkAllReady()
	case SubPreCorrectionCountdown:
		if !now.Before(c.deadline) {
			c.setSub(SubCorrection)
			c.revealStart = now
			c.deadline = now.Add(c.timings.CorrectionDuration)
		}
	case SubCorrection:
		// The fixed total duration guarantees exit even if the reveal
		// animation stalls.
		if !now.Before(c.deadline) {
			c.setSub(SubScoreboard)
			c.deadline = now.Add(c.timings.ScoreboardDuration)
		}
	case SubScoreboard:
		if !now.Before(c.deadline) {
			c.finishScoreboard(ctx)
		}
	case SubNextRoundCountdown:
		if !now.Before(c.deadline) {
			c.setSub(SubQuestion)
		}
	}
}

// Revealed returns the progressively revealed portion of the answer key
// during the correction animation, and the full key once past it.
func (c *Controller) Revealed() string {
	if c.round == nil {
		return ""
	}
	key := []rune(c.round.Question.AnswerKey)
	switch c.sub {
	case SubCorrection:
		n := int(c.now().Sub(c.revealStart) / c.timings.CorrectionRevealInterval)
		if n > len(key) {
			n = len(key)
		}
		return string(key[:n])
	case SubScoreboard, SubNextRoundCountdown:
		return string(key)
	default:
		return ""
	}
}

// Sub returns the current sub-phase.
func (c *Controller) Sub() SubPhase { return c.sub }

// Round returns the current round-local state, nil before the first
// derivation.
func (c *Controller) Round() *Round { return c.round }

// Session returns the last observed session snapshot, nil when none exists.
func (c *Controller) Session() *domain.Session { return c.session }

// Players returns the last observed player list.
func (c *Controller) Players() []domain.Player { return c.players }

// TimeRemaining returns the round timer's remaining seconds.
func (c *Controller) TimeRemaining() int {
	if c.countdown == nil {
		return 0
	}
	return c.countdown.Remaining()
}

// ImagesVisible reports whether the clue images are still inside their
// fixed visible window for the current round. Surfaces mask the images once
// the window closes.
func (c *Controller) ImagesVisible() bool {
	if c.sub != SubQuestion || c.round == nil {
		return false
	}
	return c.now().Sub(c.roundStart) < c.timings.ImageVisibleDuration
}

// TimerRunning reports whether the round timer is live. The answer machine
// uses this as its activity guard.
func (c *Controller) TimerRunning() bool {
	return c.countdown != nil && c.countdown.Running()
}

// StopTimer freezes the round timer, used on local submission.
func (c *Controller) StopTimer() {
	if c.countdown != nil {
		c.countdown.Stop()
	}
}

func (c *Controller) deriveRound(ctx context.Context, qid string, sess domain.Session) {
	question, err := c.questions.GetQuestion(ctx, qid)
	if err != nil {
		// Transient fetch failure: keep the previous known-good round.
		log.Printf("phase: fetch question %s: %v", qid, err)
		return
	}

	round := Round{
		Question: question,
		Images:   pickRandom(c.rnd, question.ImageURLs, CluesPerRound),
		Letters:  shuffleLetters(c.rnd, question.LetterPool),
	}
	c.round = &round
	c.correctionLatched = false
	c.advanceLatched = false

	limit := sess.TimeLimit
	if limit <= 0 {
		limit = c.timings.TimeLimit
	}
	c.countdown = timer.NewWithClock(limit, c.now)
	start := sess.QuestionStartedAt
	c.countdown.Reset(&start)
	c.roundStart = start

	// When the advanced question is confirmed while the next-round
	// countdown is still running, the countdown plays out to its deadline;
	// Tick performs the QUESTION transition there.
	if c.sub != SubNextRoundCountdown {
		c.setSub(SubQuestion)
	}
	if c.hooks.RoundStarted != nil {
		c.hooks.RoundStarted(round)
	}
}

// checkAllReady is the second latched entry condition for the correction
// flow: every currently registered player reported ready for the round.
func (c *Controller) checkAllReady() {
	if c.sub != SubQuestion || c.session == nil || c.session.Status != domain.StatusInProgress {
		return
	}
	if len(c.players) == 0 {
		return
	}
	for _, p := range c.players {
		if !p.Ready {
			return
		}
	}
	c.enterCorrectionFlow()
}

// enterCorrectionFlow latches the QUESTION → PRE_CORRECTION_COUNTDOWN
// transition so a fast-changing player list cannot trigger it twice.
func (c *Controller) enterCorrectionFlow() {
	if c.correctionLatched || c.sub != SubQuestion {
		return
	}
	c.correctionLatched = true
	if c.countdown != nil {
		c.countdown.Stop()
	}
	c.setSub(SubPreCorrectionCountdown)
	c.deadline = c.now().Add(c.timings.PreCorrectionCountdown)
}

func (c *Controller) finishScoreboard(ctx context.Context) {
	if !c.advanceLatched {
		c.advanceLatched = true
		if c.ops != nil {
			err := c.ops.AdvanceToNextQuestion(ctx, c.actor, c.session.ID)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrNotAuthorized):
				// Expected for non-privileged surfaces racing to request
				// the transition; a privileged actor will land it.
			default:
				log.Printf("phase: advance request failed: %v", err)
			}
		}
	}
	if c.session.OnFinalQuestion() {
		// The session-level path is toward FINISHED; hold the scoreboard
		// until the confirmation notification arrives.
		return
	}
	c.setSub(SubNextRoundCountdown)
	c.deadline = c.now().Add(c.timings.NextRoundCountdown)
}

func (c *Controller) setSub(sub SubPhase) {
	if c.sub == sub {
		return
	}
	c.sub = sub
	if c.hooks.SubPhaseChanged != nil {
		c.hooks.SubPhaseChanged(sub)
	}
}

func (c *Controller) resetRound() {
	c.round = nil
	c.countdown = nil
	c.correctionLatched = false
	c.advanceLatched = false
	c.sub = SubQuestion
}

func pickRandom(rnd *rand.Rand, pool []string, count int) []string {
	shuffled := make([]string, len(pool))
	copy(shuffled, pool)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if len(shuffled) > count {
		shuffled = shuffled[:count]
	}
	return shuffled
}

func shuffleLetters(rnd *rand.Rand, pool string) []string {
	letters := []rune(strings.ToUpper(pool))
	rnd.Shuffle(len(letters), func(i, j int) {
		letters[i], letters[j] = letters[j], letters[i]
	})
	out := make([]string, len(letters))
	for i, r := range letters {
		out[i] = string(r)
	}
	return out
}
