package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"exam-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CollectionLoader fetches a collection with its full bank from a backing
// store.
type CollectionLoader interface {
	LoadCollection(ctx context.Context, collectionID string) (domain.Collection, error)
}

// BankCache caches collections with TTL to avoid re-reading the full bank
// on every composed test.
type BankCache struct {
	loader CollectionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedCollection
}

type cachedCollection struct {
	collection domain.Collection
	expiresAt  time.Time
}

func NewBankCache(loader CollectionLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCollection),
	}
}

func (c *BankCache) GetCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[collectionID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.collection, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(collectionID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[collectionID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.collection, nil
		}
		c.mu.RUnlock()

		collection, err := c.loader.LoadCollection(ctx, collectionID)
		if err != nil {
			return domain.Collection{}, err
		}

		c.mu.Lock()
		c.cache[collectionID] = cachedCollection{
			collection: collection,
			expiresAt:  now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return collection, nil
	})
	if err != nil {
		return domain.Collection{}, err
	}
	return result.(domain.Collection), nil
}

// Invalidate drops a cached collection after its bank changes.
func (c *BankCache) Invalidate(_ context.Context, collectionID string) {
	c.mu.Lock()
	delete(c.cache, collectionID)
	c.mu.Unlock()
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations; singleflight only
	// deduplicates per key, so loads for different collections still
	// reach the rand source concurrently
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	jitter := c.rnd.Int63n(jitterMax + 1)
	c.rndMu.Unlock()
	return c.ttl + time.Duration(jitter)
}
