package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/store"
	"github.com/redis/go-redis/v9"
)

// EntityStore keeps players and sessions in Redis so game state survives a
// process restart. Notes:
//   - Role claims ride on SETNX, so the claim race resolves in Redis even
//     with several service instances pointed at the same database.
//   - Change notifications stay in-process. For true multi-instance fan-out
//     you'd pair this with a pub/sub projector; a single instance (or
//     sticky routing) does not need it.
type EntityStore struct {
	client *redis.Client
	now    func() time.Time

	mu      sync.RWMutex
	nextSub int
	subs    map[store.Collection]map[int]func(store.Event)
}

func NewEntityStore(client *redis.Client) *EntityStore {
	return &EntityStore{
		client: client,
		now:    time.Now,
		subs:   make(map[store.Collection]map[int]func(store.Event)),
	}
}

const (
	playersIndexKey  = "players"
	sessionsOrderKey = "sessions:order"
)

func playerKey(id string) string      { return "player:" + id }
func roleKey(role domain.Role) string { return "role:" + string(role) }
func sessionKey(id string) string     { return "session:" + id }

func (s *EntityStore) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	ids, err := s.client.SMembers(ctx, playersIndexKey).Result()
	if err != nil {
		return nil, err
	}
	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPlayer(ctx, id)
		if errors.Is(err, domain.ErrPlayerNotFound) {
			// Index can briefly lead the hash during concurrent deletes.
			continue
		}
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

func (s *EntityStore) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	raw, err := s.client.Get(ctx, playerKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, err
	}
	var p domain.Player
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Player{}, err
	}
	return p, nil
}

// InsertPlayer claims the role atomically via SETNX before writing the
// profile. Of two racing claims for the same role exactly one wins; the
// loser gets ErrRoleTaken.
func (s *EntityStore) InsertPlayer(ctx context.Context, p domain.Player) error {
	exists, err := s.client.Exists(ctx, playerKey(p.ID)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return domain.ErrPlayerExists
	}

	claimed, err := s.client.SetNX(ctx, roleKey(p.Role), p.ID, 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrRoleTaken
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, playerKey(p.ID), raw, 0)
	pipe.SAdd(ctx, playersIndexKey, p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	s.notify(store.Players, store.EventInsert, p.ID)
	return nil
}

func (s *EntityStore) UpdatePlayer(ctx context.Context, p domain.Player) error {
	exists, err := s.client.Exists(ctx, playerKey(p.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrPlayerNotFound
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, playerKey(p.ID), raw, 0).Err(); err != nil {
		return err
	}
	s.notify(store.Players, store.EventUpdate, p.ID)
	return nil
}

func (s *EntityStore) DeletePlayer(ctx context.Context, id string) error {
	p, err := s.GetPlayer(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, playerKey(id))
	pipe.Del(ctx, roleKey(p.Role))
	pipe.SRem(ctx, playersIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	s.notify(store.Players, store.EventDelete, id)
	return nil
}

func (s *EntityStore) InsertSession(ctx context.Context, sess domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, sessionKey(sess.ID), raw, 0)
	pipe.LPush(ctx, sessionsOrderKey, sess.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	s.notify(store.Sessions, store.EventInsert, sess.ID)
	return nil
}

func (s *EntityStore) UpdateSession(ctx context.Context, sess domain.Session) error {
	exists, err := s.client.Exists(ctx, sessionKey(sess.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrSessionNotFound
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), raw, 0).Err(); err != nil {
		return err
	}
	s.notify(store.Sessions, store.EventUpdate, sess.ID)
	return nil
}

// CurrentSession returns the most recently inserted session.
func (s *EntityStore) CurrentSession(ctx context.Context) (domain.Session, error) {
	id, err := s.client.LIndex(ctx, sessionsOrderKey, 0).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	raw, err := s.client.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// DeleteAll wipes every player and session record and emits one dirty
// signal per collection.
func (s *EntityStore) DeleteAll(ctx context.Context) error {
	playerIDs, err := s.client.SMembers(ctx, playersIndexKey).Result()
	if err != nil {
		return err
	}
	sessionIDs, err := s.client.LRange(ctx, sessionsOrderKey, 0, -1).Result()
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, id := range playerIDs {
		pipe.Del(ctx, playerKey(id))
	}
	for _, role := range domain.Roles {
		pipe.Del(ctx, roleKey(role))
	}
	for _, id := range sessionIDs {
		pipe.Del(ctx, sessionKey(id))
	}
	pipe.Del(ctx, playersIndexKey)
	pipe.Del(ctx, sessionsOrderKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.notify(store.Players, store.EventDelete, "")
	s.notify(store.Sessions, store.EventDelete, "")
	return nil
}

// Subscribe registers a change handler for a collection. Cancel is
// synchronous: after the returned func returns, the handler is never
// called again.
func (s *EntityStore) Subscribe(collection store.Collection, handler func(store.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]func(store.Event))
	}
	s.subs[collection][id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[collection], id)
	}
}

func (s *EntityStore) notify(collection store.Collection, kind store.EventKind, recordID string) {
	s.mu.RLock()
	handlers := make([]func(store.Event), 0, len(s.subs[collection]))
	for _, h := range s.subs[collection] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	ev := store.Event{Collection: collection, Kind: kind, RecordID: recordID, At: s.now()}
	for _, h := range handlers {
		h(ev)
	}
}
