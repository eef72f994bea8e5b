package app

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/engine/score"
	"cluehunt-service/internal/store"
	"github.com/google/uuid"
)

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionsPerGame is how many questions a playthrough asks.
const QuestionsPerGame = 5

// GameService implements the privileged operations (store.Ops). All
// game-state-affecting writes funnel through here under a single-writer
// lock; clients never read-modify-write session or score fields themselves.
type GameService struct {
	entities  store.EntityStore
	questions QuestionRepository
	timeLimit time.Duration
	now       func() time.Time
	rnd       *rand.Rand

	mu sync.Mutex
}

func NewGameService(entities store.EntityStore, questions QuestionRepository, timeLimit time.Duration) *GameService {
	return NewGameServiceWithClock(entities, questions, timeLimit,
		time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewGameServiceWithClock is test-only for deterministic time and shuffles.
func NewGameServiceWithClock(entities store.EntityStore, questions QuestionRepository, timeLimit time.Duration, now func() time.Time, rnd *rand.Rand) *GameService {
	if timeLimit <= 0 {
		timeLimit = score.MaxTimeSeconds * time.Second
	}
	return &GameService{
		entities:  entities,
		questions: questions,
		timeLimit: timeLimit,
		now:       now,
		rnd:       rnd,
	}
}

// PrepareQuestionOrder shuffles the catalog and picks the playthrough's
// question identities. Callers pass the result to StartNewGame.
func (s *GameService) PrepareQuestionOrder(ctx context.Context, count int) ([]string, error) {
	catalog, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if len(catalog) < count {
		return nil, domain.ErrNotEnoughQuestions
	}
	ids := make([]string, len(catalog))
	for i, q := range catalog {
		ids[i] = q.ID
	}
	s.rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids[:count], nil
}

// StartNewGame creates the session and binds the lobby players to it. Any
// actor may request it (lobby auto-launch races with the admin); the loser
// of the race gets ErrGameAlreadyRunning, which surfaces treat as expected.
func (s *GameService) StartNewGame(ctx context.Context, _ store.Actor, args store.StartGameArgs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, err := s.entities.CurrentSession(ctx); err == nil {
		if current.Status == domain.StatusInProgress || current.Status == domain.StatusCorrectionPhase {
			return domain.ErrGameAlreadyRunning
		}
	}
	if len(args.QuestionIDs) == 0 || args.TotalQuestions > len(args.QuestionIDs) {
		return domain.ErrNotEnoughQuestions
	}
	if len(args.PlayerIDs) == 0 {
		return domain.ErrNoPlayers
	}
	total := args.TotalQuestions
	if total <= 0 {
		total = len(args.QuestionIDs)
	}

	now := s.now()
	session := domain.Session{
		ID:                uuid.NewString(),
		Status:            domain.StatusInProgress,
		QuestionOrder:     args.QuestionIDs,
		QuestionIndex:     0,
		TotalQuestions:    total,
		QuestionStartedAt: now,
		TimeLimit:         s.timeLimit,
		CreatedAt:         now,
	}

	bound := make(map[string]bool, len(args.PlayerIDs))
	for _, id := range args.PlayerIDs {
		bound[id] = true
	}
	players, err := s.entities.ListPlayers(ctx)
	if err != nil {
		return err
	}
	for _, p := range players {
		if !bound[p.ID] {
			continue
		}
		p.SessionID = session.ID
		p.Ready = false
		p.Score = 0
		if err := s.entities.UpdatePlayer(ctx, p); err != nil {
			return err
		}
	}

	return s.entities.InsertSession(ctx, session)
}

// AdvanceToNextQuestion moves the current session forward: next question, or
// FINISHED after the last one. Readiness is reset per round. Privileged.
func (s *GameService) AdvanceToNextQuestion(ctx context.Context, actor store.Actor, sessionID string) error {
	if !actor.Privileged {
		return domain.ErrNotAuthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.entities.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if session.ID != sessionID {
		return domain.ErrSessionNotFound
	}
	if session.Status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}

	if session.OnFinalQuestion() {
		session.Status = domain.StatusFinished
		return s.entities.UpdateSession(ctx, session)
	}

	session.QuestionIndex++
	session.Status = domain.StatusInProgress
	session.QuestionStartedAt = s.now()
	if err := s.entities.UpdateSession(ctx, session); err != nil {
		return err
	}

	players, err := s.entities.ListPlayers(ctx)
	if err != nil {
		return err
	}
	for _, p := range players {
		if p.SessionID != session.ID || !p.Ready {
			continue
		}
		p.Ready = false
		if err := s.entities.UpdatePlayer(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ResetGameData wipes every player profile and session record. Privileged.
// Surfaces discover their missing profile on the next fetch and return to
// role selection.
func (s *GameService) ResetGameData(ctx context.Context, actor store.Actor) error {
	if !actor.Privileged {
		return domain.ErrNotAuthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities.DeleteAll(ctx)
}

// SubmitPlayerAnswer is the only way score changes. It recomputes the score
// delta server-side from the reported penalty count and remaining time (the
// client's display is provisional), marks the player ready for the round,
// and moves the session to CORRECTION_PHASE once every bound player is.
func (s *GameService) SubmitPlayerAnswer(ctx context.Context, actor store.Actor, args store.SubmitAnswerArgs) error {
	if !actor.Privileged && actor.PlayerID != args.PlayerID {
		return domain.ErrNotAuthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.entities.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if session.ID != args.SessionID {
		return domain.ErrSessionNotFound
	}

	player, err := s.entities.GetPlayer(ctx, args.PlayerID)
	if err != nil {
		return err
	}
	if player.Ready {
		// Already answered this round. A player's submit and the server's
		// timeout can race; the second write is a no-op.
		return nil
	}

	var delta int
	switch args.Action {
	case domain.ActionSubmitAnswer:
		delta = score.FinalScore(args.TimeRemaining, args.PenaltyCount)
	case domain.ActionTimeOutAnswer:
		delta = score.TimeoutScore(args.PenaltyCount)
	default:
		return domain.ErrInvalidAction
	}

	player.Score += delta
	if player.Score < 0 {
		// Per-question deltas may be negative; the cumulative score floors
		// at zero.
		player.Score = 0
	}
	player.Ready = true
	if err := s.entities.UpdatePlayer(ctx, player); err != nil {
		return err
	}

	return s.maybeEnterCorrection(ctx, session)
}

// maybeEnterCorrection transitions the session to CORRECTION_PHASE when all
// bound players have answered or timed out.
func (s *GameService) maybeEnterCorrection(ctx context.Context, session domain.Session) error {
	if session.Status != domain.StatusInProgress {
		return nil
	}
	players, err := s.entities.ListPlayers(ctx)
	if err != nil {
		return err
	}
	var bound int
	for _, p := range players {
		if p.SessionID != session.ID {
			continue
		}
		bound++
		if !p.Ready {
			return nil
		}
	}
	if bound == 0 {
		return nil
	}
	session.Status = domain.StatusCorrectionPhase
	return s.entities.UpdateSession(ctx, session)
}

// Leaderboard returns the session's players ordered by score descending,
// ties broken by join time then role name.
func (s *GameService) Leaderboard(ctx context.Context, sessionID string) ([]domain.Player, error) {
	players, err := s.entities.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	ranked := players[:0]
	for _, p := range players {
		if sessionID == "" || p.SessionID == sessionID {
			ranked = append(ranked, p)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
		}
		return ranked[i].Role < ranked[j].Role
	})
	return ranked, nil
}
