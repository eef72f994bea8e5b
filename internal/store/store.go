// Package store declares the contracts the game core needs from its backing
// services: versioned entity records with change notifications, privileged
// state-transition operations, and anonymous identity issuance. Concrete
// implementations live under internal/infra.
package store

import (
	"context"
	"time"

	"cluehunt-service/internal/domain"
)

// Collection names the entity collections clients can observe.
type Collection string

const (
	Players  Collection = "players"
	Sessions Collection = "sessions"
)

// EventKind is the kind of change a notification reports.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// Event is a change notification. Consumers treat it purely as a dirty
// signal and re-fetch authoritative state; no ordering is guaranteed across
// distinct notifications.
type Event struct {
	Collection Collection
	Kind       EventKind
	RecordID   string
	At         time.Time
}

// EntityStore is the single shared source of truth for player and session
// records. Writes that affect game state go through Ops, never through
// unprotected read-modify-write on these methods.
type EntityStore interface {
	ListPlayers(ctx context.Context) ([]domain.Player, error)
	GetPlayer(ctx context.Context, id string) (domain.Player, error)
	// InsertPlayer returns domain.ErrRoleTaken when the role is claimed
	// concurrently, domain.ErrPlayerExists for a duplicate identity.
	InsertPlayer(ctx context.Context, p domain.Player) error
	UpdatePlayer(ctx context.Context, p domain.Player) error
	DeletePlayer(ctx context.Context, id string) error

	InsertSession(ctx context.Context, s domain.Session) error
	UpdateSession(ctx context.Context, s domain.Session) error
	// CurrentSession returns the most recently created session, or
	// domain.ErrSessionNotFound when none exists.
	CurrentSession(ctx context.Context) (domain.Session, error)

	// DeleteAll clears both collections. Used only by the reset operation.
	DeleteAll(ctx context.Context) error

	// Subscribe registers a change handler for a collection and returns its
	// cancel func. Cancel is synchronous: after it returns the handler will
	// not be called again.
	Subscribe(collection Collection, handler func(Event)) (cancel func())
}

// Actor identifies who is invoking a privileged operation. Privileged is set
// only for the admin surface and the server-hosted director.
type Actor struct {
	PlayerID   string
	Privileged bool
}

// StartGameArgs carries the playthrough setup for the start operation.
type StartGameArgs struct {
	QuestionIDs    []string
	TotalQuestions int
	PlayerIDs      []string
}

// SubmitAnswerArgs carries a player's round outcome for server-side scoring.
type SubmitAnswerArgs struct {
	PlayerID      string
	SessionID     string
	Action        domain.AnswerAction
	PenaltyCount  int
	TimeRemaining int
}

// Ops are the named privileged operations, the only legal way to mutate
// session and score state. Success means the request was accepted; the
// resulting state change is observed through the next change notification,
// never assumed synchronously.
type Ops interface {
	StartNewGame(ctx context.Context, actor Actor, args StartGameArgs) error
	AdvanceToNextQuestion(ctx context.Context, actor Actor, sessionID string) error
	ResetGameData(ctx context.Context, actor Actor) error
	SubmitPlayerAnswer(ctx context.Context, actor Actor, args SubmitAnswerArgs) error
}

// IdentityIssuer hands out opaque anonymous identities for role claims.
type IdentityIssuer interface {
	SignInAnonymously(ctx context.Context) (string, error)
}
