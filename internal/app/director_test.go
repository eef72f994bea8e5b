package app

import (
	"context"
	"testing"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/engine/phase"
	"cluehunt-service/internal/infra/memory"
	"cluehunt-service/internal/store"
)

func TestDirectorTimesOutStragglers(t *testing.T) {
	svc, entities := newTestService(t, 8)
	ctx := context.Background()
	seedPlayer(t, entities, "p1", domain.RoleDroit)
	seedPlayer(t, entities, "p2", domain.RoleNurs)
	session := startRunningGame(t, svc, entities, "p1", "p2")

	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(testQuestions(8)), time.Minute)
	d := NewDirector(entities, svc, repo, phase.DefaultTimings())
	d.runCtx = ctx

	// p1 answers in time, p2 never does.
	err := svc.SubmitPlayerAnswer(ctx, store.Actor{PlayerID: "p1"}, store.SubmitAnswerArgs{
		PlayerID: "p1", SessionID: session.ID, Action: domain.ActionSubmitAnswer, TimeRemaining: 12,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	d.refresh(ctx)
	d.timeOutStragglers()

	p2, err := entities.GetPlayer(ctx, "p2")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if !p2.Ready {
		t.Fatal("expected straggler to be timed out")
	}
	session, err = entities.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	if session.Status != domain.StatusCorrectionPhase {
		t.Fatalf("expected CORRECTION_PHASE after timeouts, got %s", session.Status)
	}
}

func TestDirectorRefreshWithoutSession(t *testing.T) {
	entities := memory.NewEntityStore()
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(testQuestions(8)), time.Minute)
	svc := NewGameService(entities, repo, 30*time.Second)
	d := NewDirector(entities, svc, repo, phase.DefaultTimings())

	// No session in the store yet; refresh must not panic or log an error
	// state into the controller.
	d.refresh(context.Background())
	if d.ctrl.Session() != nil {
		t.Fatal("expected nil session")
	}

	d.timeOutStragglers()
}

func TestDirectorRunStopsOnCancel(t *testing.T) {
	entities := memory.NewEntityStore()
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(testQuestions(8)), time.Minute)
	svc := NewGameService(entities, repo, 30*time.Second)
	d := NewDirector(entities, svc, repo, phase.DefaultTimings())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("director did not stop on cancel")
	}
}
