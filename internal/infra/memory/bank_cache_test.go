package memory

import (
	"context"
	"testing"
	"time"

	"exam-session-service/internal/domain"
)

func TestBankCacheCaches(t *testing.T) {
	loader := &countingLoader{CollectionLoader: cacheDirectory()}
	cache := NewBankCache(loader, time.Minute)

	if _, err := cache.GetCollection(context.Background(), "col-1"); err != nil {
		t.Fatalf("get collection: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.GetCollection(context.Background(), "col-1"); err != nil {
		t.Fatalf("get collection 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestBankCacheInvalidateForcesReload(t *testing.T) {
	loader := &countingLoader{CollectionLoader: cacheDirectory()}
	cache := NewBankCache(loader, time.Minute)

	if _, err := cache.GetCollection(context.Background(), "col-1"); err != nil {
		t.Fatalf("get collection: %v", err)
	}
	cache.Invalidate(context.Background(), "col-1")
	if _, err := cache.GetCollection(context.Background(), "col-1"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

type countingLoader struct {
	CollectionLoader
	calls int
}

func (l *countingLoader) LoadCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	l.calls++
	return l.CollectionLoader.LoadCollection(ctx, collectionID)
}

func cacheDirectory() *Directory {
	d := NewDirectory()
	d.Seed(nil, []domain.Collection{{
		ID:           "col-1",
		Name:         "Algebra",
		AmountInTest: 1,
		GivenMinutes: 10,
		Questions: []domain.Question{{
			ID:   "q1",
			Text: "What is 2 + 2?",
			Answers: []domain.Answer{
				{ID: "a1", Text: "3", IsCorrect: false},
				{ID: "a2", Text: "4", IsCorrect: true},
			},
		}},
	}})
	return d
}
