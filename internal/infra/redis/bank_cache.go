// Package redis caches collection banks so composing a test does not
// re-read the whole bank from Postgres on every attempt.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankCache stores each collection as JSON under bank:{collectionID} and
// falls back to a loader on cache miss. Loads are deduplicated with
// singleflight and TTLs carry up to 10% jitter.
type BankCache struct {
	client *redis.Client
	loader memory.CollectionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankCache(client *redis.Client, loader memory.CollectionLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *BankCache) GetCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	key := c.key(collectionID)

	if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var collection domain.Collection
		if err := json.Unmarshal(cached, &collection); err == nil {
			return collection, nil
		}
		// unreadable payload, treat as a miss and refill below
	}

	result, err, _ := c.sf.Do(collectionID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var collection domain.Collection
			if err := json.Unmarshal(cached, &collection); err == nil {
				return collection, nil
			}
		}

		collection, err := c.loader.LoadCollection(ctx, collectionID)
		if err != nil {
			return domain.Collection{}, err
		}

		if data, err := json.Marshal(collection); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return collection, nil
	})
	if err != nil {
		return domain.Collection{}, err
	}
	return result.(domain.Collection), nil
}

// Invalidate drops the cached bank after an import or answer update.
func (c *BankCache) Invalidate(ctx context.Context, collectionID string) {
	_ = c.client.Del(ctx, c.key(collectionID)).Err()
}

func (c *BankCache) key(collectionID string) string {
	return "bank:" + collectionID
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// singleflight only deduplicates per key; loads for different
	// collections reach the rand source concurrently
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	jitter := c.rnd.Int63n(jitterMax + 1)
	c.rndMu.Unlock()
	return c.ttl + time.Duration(jitter)
}
