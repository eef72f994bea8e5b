package redis

import (
	"context"
	"testing"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[string]domain.Question{
			"q-1": sampleQuestion(),
		}),
	}
	repo := NewQuestionRepository(client, loader, time.Minute)

	got, err := repo.GetQuestion(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.getCalls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.getCalls)
	}
	if got.AnswerKey != "AVATAR" {
		t.Fatalf("unexpected answer key %q", got.AnswerKey)
	}

	// Second call should hit cache, loader not incremented.
	got, err = repo.GetQuestion(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if loader.getCalls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.getCalls)
	}
	if got.ThemeTag != "CINEMA" || len(got.ImageURLs) != 2 {
		t.Fatalf("cached question lost fields: %+v", got)
	}
	if len(got.LetterPool) != 10 {
		t.Fatalf("expected 10 pool letters, got %d", len(got.LetterPool))
	}
}

func TestQuestionRepositoryListsCatalogFromIndex(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[string]domain.Question{
			"q-1": sampleQuestion(),
		}),
	}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute)

	catalog, err := repo.ListQuestions(context.Background())
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(catalog) != 1 {
		t.Fatalf("expected 1 question, got %d", len(catalog))
	}
	if loader.listCalls != 1 {
		t.Fatalf("expected one catalog load, got %d", loader.listCalls)
	}

	// Second list is served from the index set; no loader calls at all.
	if _, err := repo.ListQuestions(context.Background()); err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if loader.listCalls != 1 || loader.getCalls != 0 {
		t.Fatalf("expected cache hits, list=%d get=%d", loader.listCalls, loader.getCalls)
	}
}

type countingLoader struct {
	QuestionLoader
	getCalls  int
	listCalls int
}

func (l *countingLoader) LoadQuestion(ctx context.Context, id string) (domain.Question, error) {
	l.getCalls++
	return l.QuestionLoader.LoadQuestion(ctx, id)
}

func (l *countingLoader) LoadAllQuestions(ctx context.Context) ([]domain.Question, error) {
	l.listCalls++
	return l.QuestionLoader.LoadAllQuestions(ctx)
}

func sampleQuestion() domain.Question {
	return domain.Question{
		ID:         "q-1",
		ThemeTag:   "CINEMA",
		AnswerKey:  "AVATAR",
		ImageURLs:  []string{"https://img.example/a.jpg", "https://img.example/b.jpg"},
		LetterPool: "AVATARBCDE",
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
