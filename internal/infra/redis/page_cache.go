package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/sparql"
)

// PageCache caches knowledge query result windows in Redis and falls back to the
// wrapped pager on a miss.
// Windows are stored as: SET trivia:page:{sha1(query)}:{offset}:{limit} {candidates json} EX ttl
type PageCache struct {
	client *redis.Client
	pager  sparql.Pager
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPageCache(client *redis.Client, pager sparql.Pager, ttl time.Duration) *PageCache {
	return &PageCache{
		client: client,
		pager:  pager,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PageCache) Query(ctx context.Context, query string, offset, limit int) ([]domain.Candidate, error) {
	key := c.key(query, offset, limit)

	if page, ok := c.lookup(ctx, key); ok {
		return page, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if page, ok := c.lookup(ctx, key); ok {
			return page, nil
		}

		candidates, err := c.pager.Query(ctx, query, offset, limit)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(candidates); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return candidates, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Candidate(nil), result.([]domain.Candidate)...), nil
}

// lookup treats Redis errors as misses so an unhealthy cache degrades to upstream calls.
func (c *PageCache) lookup(ctx context.Context, key string) ([]domain.Candidate, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var page []domain.Candidate
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, false
	}
	return page, true
}

func (c *PageCache) key(query string, offset, limit int) string {
	return "trivia:page:" + sparql.PageKey(query, offset, limit)
}

func (c *PageCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
