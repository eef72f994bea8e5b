package domain

import (
	"strings"
	"time"
)

// SessionStatus is the authoritative lifecycle phase of a game session.
// Only privileged operations may transition it.
type SessionStatus string

const (
	StatusLobby           SessionStatus = "LOBBY"
	StatusInProgress      SessionStatus = "IN_PROGRESS"
	StatusCorrectionPhase SessionStatus = "CORRECTION_PHASE"
	StatusFinished        SessionStatus = "FINISHED"
)

// AnswerAction distinguishes how a player's round ended.
type AnswerAction string

const (
	// ActionSubmitAnswer is sent when the player validated the exact answer.
	ActionSubmitAnswer AnswerAction = "SUBMIT_ANSWER"
	// ActionTimeOutAnswer is sent when the round timer expired before validation.
	ActionTimeOutAnswer AnswerAction = "TIME_OUT_ANSWER"
)

// Player is a profile bound to a claimed role. Owned by the backing store;
// score and readiness are mutated only by privileged operations.
type Player struct {
	ID        string    `json:"id"`
	Role      Role      `json:"roleName"`
	Ready     bool      `json:"isReady"`
	Score     int       `json:"currentScore"`
	SessionID string    `json:"lastSessionId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Question is one picture-clue riddle. AnswerKey is uppercase and fixed;
// its length determines the answer slot width for the round. ImageURLs is a
// superset from which each client picks its round-stable subset. LetterPool
// contains every answer key character plus decoys.
type Question struct {
	ID         string   `json:"id"`
	ThemeTag   string   `json:"themeTag"`
	AnswerKey  string   `json:"answerKey"`
	ImageURLs  []string `json:"imagesUrl"`
	LetterPool string   `json:"letterPool"`
}

// Validate enforces the question schema at the store boundary.
func (q Question) Validate() error {
	if q.ID == "" || q.AnswerKey == "" {
		return ErrQuestionNotFound
	}
	key := strings.ToUpper(q.AnswerKey)
	pool := strings.ToUpper(q.LetterPool)
	for _, r := range key {
		if !strings.ContainsRune(pool, r) {
			return ErrQuestionNotFound
		}
	}
	return nil
}

// Session is the single shared record describing a playthrough. The most
// recently created session is the current one; superseded sessions are kept.
type Session struct {
	ID                string        `json:"id"`
	Status            SessionStatus `json:"status"`
	QuestionOrder     []string      `json:"questionOrderIds"`
	QuestionIndex     int           `json:"currentQuestionIndex"`
	TotalQuestions    int           `json:"totalQuestions"`
	QuestionStartedAt time.Time     `json:"startTime"`
	TimeLimit         time.Duration `json:"timeLimit"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// CurrentQuestionID returns the identity of the active question, or "" when
// the index is out of range or the session is not running.
func (s Session) CurrentQuestionID() string {
	if s.QuestionIndex < 0 || s.QuestionIndex >= len(s.QuestionOrder) {
		return ""
	}
	return s.QuestionOrder[s.QuestionIndex]
}

// OnFinalQuestion reports whether the active question is the last one.
func (s Session) OnFinalQuestion() bool {
	return s.QuestionIndex+1 >= s.TotalQuestions
}
