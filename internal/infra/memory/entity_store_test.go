package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/store"
)

func TestRoleClaimRace(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.InsertPlayer(ctx, domain.Player{ID: string(rune('a' + i)), Role: domain.RoleDroit})
		}(i)
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrRoleTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner, got %d successes %d conflicts", successes, conflicts)
	}

	players, _ := s.ListPlayers(ctx)
	if len(players) != 1 {
		t.Fatalf("expected 1 player after race, got %d", len(players))
	}
}

func TestDuplicateIdentityRejected(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()

	if err := s.InsertPlayer(ctx, domain.Player{ID: "p1", Role: domain.RoleNurs}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.InsertPlayer(ctx, domain.Player{ID: "p1", Role: domain.RoleDroit})
	if !errors.Is(err, domain.ErrPlayerExists) {
		t.Fatalf("expected ErrPlayerExists, got %v", err)
	}
}

func TestCurrentSessionIsMostRecent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewEntityStoreWithClock(func() time.Time { return now })

	_ = s.InsertSession(ctx, domain.Session{ID: "s1"})
	now = now.Add(time.Minute)
	_ = s.InsertSession(ctx, domain.Session{ID: "s2"})

	current, err := s.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	if current.ID != "s2" {
		t.Fatalf("expected s2 to be current, got %s", current.ID)
	}
}

func TestCurrentSessionEmpty(t *testing.T) {
	s := NewEntityStore()
	_, err := s.CurrentSession(context.Background())
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubscribeAndCancel(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()

	var events []store.Event
	cancel := s.Subscribe(store.Players, func(e store.Event) {
		events = append(events, e)
	})

	_ = s.InsertPlayer(ctx, domain.Player{ID: "p1", Role: domain.RoleGestion})
	if len(events) != 1 || events[0].Kind != store.EventInsert {
		t.Fatalf("expected one insert event, got %+v", events)
	}

	cancel()
	_ = s.DeletePlayer(ctx, "p1")
	if len(events) != 1 {
		t.Fatalf("handler called after cancel")
	}
}

func TestDeleteAllNotifiesBothCollections(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()
	_ = s.InsertPlayer(ctx, domain.Player{ID: "p1", Role: domain.RoleCommunication})
	_ = s.InsertSession(ctx, domain.Session{ID: "s1"})

	var playerEvents, sessionEvents int
	defer s.Subscribe(store.Players, func(store.Event) { playerEvents++ })()
	defer s.Subscribe(store.Sessions, func(store.Event) { sessionEvents++ })()

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if playerEvents != 1 || sessionEvents != 1 {
		t.Fatalf("expected one dirty signal per collection, got %d/%d", playerEvents, sessionEvents)
	}

	if _, err := s.GetPlayer(ctx, "p1"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player gone, got %v", err)
	}
}
