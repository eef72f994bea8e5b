package memory

import (
	"context"
	"sync"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/store"
)

// EntityStore is an in-memory implementation of store.EntityStore with
// synchronous change notifications. Role uniqueness is enforced at insert
// time, which is what makes concurrent role claims safe without client-side
// locking.
type EntityStore struct {
	now func() time.Time

	mu           sync.RWMutex
	players      map[string]domain.Player
	sessions     map[string]domain.Session
	sessionOrder []string
	subs         map[store.Collection]map[int]func(store.Event)
	nextSub      int
}

func NewEntityStore() *EntityStore {
	return NewEntityStoreWithClock(time.Now)
}

// NewEntityStoreWithClock allows deterministic timestamps in tests.
func NewEntityStoreWithClock(now func() time.Time) *EntityStore {
	return &EntityStore{
		now:      now,
		players:  make(map[string]domain.Player),
		sessions: make(map[string]domain.Session),
		subs:     make(map[store.Collection]map[int]func(store.Event)),
	}
}

func (s *EntityStore) ListPlayers(_ context.Context) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out, nil
}

func (s *EntityStore) GetPlayer(_ context.Context, id string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return p, nil
}

func (s *EntityStore) InsertPlayer(_ context.Context, p domain.Player) error {
	s.mu.Lock()
	if _, ok := s.players[p.ID]; ok {
		s.mu.Unlock()
		return domain.ErrPlayerExists
	}
	for _, existing := range s.players {
		if existing.Role == p.Role {
			s.mu.Unlock()
			return domain.ErrRoleTaken
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.players[p.ID] = p
	s.mu.Unlock()

	s.notify(store.Players, store.EventInsert, p.ID)
	return nil
}

func (s *EntityStore) UpdatePlayer(_ context.Context, p domain.Player) error {
	s.mu.Lock()
	if _, ok := s.players[p.ID]; !ok {
		s.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	s.players[p.ID] = p
	s.mu.Unlock()

	s.notify(store.Players, store.EventUpdate, p.ID)
	return nil
}

func (s *EntityStore) DeletePlayer(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.players[id]; !ok {
		s.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	delete(s.players, id)
	s.mu.Unlock()

	s.notify(store.Players, store.EventDelete, id)
	return nil
}

func (s *EntityStore) InsertSession(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	s.sessions[sess.ID] = sess
	s.sessionOrder = append(s.sessionOrder, sess.ID)
	s.mu.Unlock()

	s.notify(store.Sessions, store.EventInsert, sess.ID)
	return nil
}

func (s *EntityStore) UpdateSession(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	if _, ok := s.sessions[sess.ID]; !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.notify(store.Sessions, store.EventUpdate, sess.ID)
	return nil
}

// CurrentSession returns the most recently created session; creation order
// breaks timestamp ties.
func (s *EntityStore) CurrentSession(_ context.Context) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.sessionOrder) - 1; i >= 0; i-- {
		if sess, ok := s.sessions[s.sessionOrder[i]]; ok {
			return sess, nil
		}
	}
	return domain.Session{}, domain.ErrSessionNotFound
}

func (s *EntityStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	s.players = make(map[string]domain.Player)
	s.sessions = make(map[string]domain.Session)
	s.sessionOrder = nil
	s.mu.Unlock()

	s.notify(store.Players, store.EventDelete, "")
	s.notify(store.Sessions, store.EventDelete, "")
	return nil
}

// Subscribe registers a change handler. Cancellation is synchronous: once
// the returned func returns, the handler is never called again.
func (s *EntityStore) Subscribe(collection store.Collection, handler func(store.Event)) func() {
	s.mu.Lock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]func(store.Event))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[collection][id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs[collection], id)
		s.mu.Unlock()
	}
}

// notify delivers a dirty signal to subscribers outside the store lock so
// handlers may re-fetch state without deadlocking.
func (s *EntityStore) notify(collection store.Collection, kind store.EventKind, recordID string) {
	s.mu.RLock()
	handlers := make([]func(store.Event), 0, len(s.subs[collection]))
	for _, h := range s.subs[collection] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	event := store.Event{Collection: collection, Kind: kind, RecordID: recordID, At: s.now()}
	for _, h := range handlers {
		h(event)
	}
}
