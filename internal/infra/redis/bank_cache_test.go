package redis

import (
	"context"
	"testing"
	"time"

	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBankCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &countingLoader{directory: seededDirectory()}
	cache := NewBankCache(client, loader, time.Minute)

	collection, err := cache.GetCollection(context.Background(), "col-1")
	if err != nil {
		t.Fatalf("get collection: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(collection.Questions) != 1 || collection.AmountInTest != 1 {
		t.Fatalf("unexpected collection %+v", collection)
	}
	if !mr.Exists("bank:col-1") {
		t.Fatalf("expected bank key in redis")
	}

	// Second call must hit the cache.
	if _, err := cache.GetCollection(context.Background(), "col-1"); err != nil {
		t.Fatalf("get collection again: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestBankCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &countingLoader{directory: seededDirectory()}
	cache := NewBankCache(client, loader, time.Minute)

	if _, err := cache.GetCollection(context.Background(), "col-1"); err != nil {
		t.Fatalf("get collection: %v", err)
	}
	cache.Invalidate(context.Background(), "col-1")
	if mr.Exists("bank:col-1") {
		t.Fatalf("expected bank key removed")
	}

	if _, err := cache.GetCollection(context.Background(), "col-1"); err != nil {
		t.Fatalf("get collection after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, calls=%d", loader.calls)
	}
}

type countingLoader struct {
	directory *memory.Directory
	calls     int
}

func (l *countingLoader) LoadCollection(ctx context.Context, id string) (domain.Collection, error) {
	l.calls++
	return l.directory.LoadCollection(ctx, id)
}

func seededDirectory() *memory.Directory {
	d := memory.NewDirectory()
	d.Seed(nil, []domain.Collection{
		{
			ID:           "col-1",
			Name:         "Algebra",
			AmountInTest: 1,
			GivenMinutes: 10,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Answers: []domain.Answer{
						{ID: "a1", Text: "4", IsCorrect: true},
						{ID: "a2", Text: "5", IsCorrect: false},
					},
				},
			},
		},
	})
	return d
}
