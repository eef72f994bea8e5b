package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no game session has been created yet.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrPlayerNotFound is returned when a player profile no longer exists
	// (e.g. after an administrative reset).
	ErrPlayerNotFound = errors.New("player not found")
	// ErrQuestionNotFound indicates the question content could not be loaded.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrRoleTaken indicates the requested role was claimed by a concurrent actor.
	ErrRoleTaken = errors.New("role already taken")
	// ErrPlayerExists indicates a profile already exists for this identity.
	ErrPlayerExists = errors.New("player already exists")
	// ErrGameAlreadyRunning rejects a start request while a playthrough is active.
	ErrGameAlreadyRunning = errors.New("game already in progress")
	// ErrNotAuthorized rejects a privileged operation invoked without privilege.
	ErrNotAuthorized = errors.New("not authorized for privileged operation")
	// ErrSessionFinished rejects advancing a session past its last question.
	ErrSessionFinished = errors.New("session already finished")
	// ErrNotEnoughQuestions rejects starting a game with too small a question pool.
	ErrNotEnoughQuestions = errors.New("not enough questions to start a game")
	// ErrNoPlayers rejects starting a game with an empty lobby.
	ErrNoPlayers = errors.New("no players registered")
	// ErrInvalidAction indicates an unknown answer submission action.
	ErrInvalidAction = errors.New("invalid answer action")
	// ErrLobbyFull indicates the fixed player capacity has been reached.
	ErrLobbyFull = errors.New("lobby is full")
)
