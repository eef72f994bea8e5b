package redis

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"cluehunt-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question content from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, id string) (domain.Question, error)
	LoadAllQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches question content in Redis (hash per question) and
// falls back to a loader on cache miss. The layout is:
//
//	HSET question:{id} theme {tag} answer {key} letters {pool} images {urls}
//	SADD questions:index {id...}
//
// Images are stored newline-separated. The index set carries the catalog for
// ListQuestions and expires with the hashes.
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	key := r.questionKey(id)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return buildQuestionFromCache(id, fields), nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return buildQuestionFromCache(id, fields), nil
		}

		question, err := r.loader.LoadQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		if err := question.Validate(); err != nil {
			return domain.Question{}, err
		}

		pipe := r.client.Pipeline()
		r.cacheQuestion(ctx, pipe, question)
		_, _ = pipe.Exec(ctx)

		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// ListQuestions returns the full catalog, hydrating the index set from the
// loader on first use.
func (r *QuestionRepository) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err == nil && len(ids) > 0 {
		return r.collect(ctx, ids)
	}

	result, err, _ := r.sf.Do(indexKey, func() (interface{}, error) {
		ids, err := r.client.SMembers(ctx, indexKey).Result()
		if err == nil && len(ids) > 0 {
			return r.collect(ctx, ids)
		}

		catalog, err := r.loader.LoadAllQuestions(ctx)
		if err != nil {
			return nil, err
		}

		pipe := r.client.Pipeline()
		for _, q := range catalog {
			if err := q.Validate(); err != nil {
				return nil, err
			}
			r.cacheQuestion(ctx, pipe, q)
			pipe.SAdd(ctx, indexKey, q.ID)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, indexKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return catalog, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) collect(ctx context.Context, ids []string) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, err := r.GetQuestion(ctx, id)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (r *QuestionRepository) cacheQuestion(ctx context.Context, pipe redis.Pipeliner, q domain.Question) {
	key := r.questionKey(q.ID)
	pipe.HSet(ctx, key,
		"theme", q.ThemeTag,
		"answer", q.AnswerKey,
		"letters", q.LetterPool,
		"images", strings.Join(q.ImageURLs, "\n"),
	)
	if ttl := r.ttlWithJitter(); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
}

const indexKey = "questions:index"

func (r *QuestionRepository) questionKey(id string) string {
	return "question:" + id
}

func buildQuestionFromCache(id string, fields map[string]string) domain.Question {
	q := domain.Question{
		ID:         id,
		ThemeTag:   fields["theme"],
		AnswerKey:  fields["answer"],
		LetterPool: fields["letters"],
	}
	if imgs := fields["images"]; imgs != "" {
		q.ImageURLs = strings.Split(imgs, "\n")
	}
	return q
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
