package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/sparql"
)

// PageCache caches knowledge query result windows with TTL to avoid repeated upstream hits.
type PageCache struct {
	pager sparql.Pager
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPage
}

type cachedPage struct {
	candidates []domain.Candidate
	expiresAt  time.Time
}

func NewPageCache(pager sparql.Pager, ttl time.Duration) *PageCache {
	return &PageCache{
		pager: pager,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedPage),
	}
}

func (c *PageCache) Query(ctx context.Context, query string, offset, limit int) ([]domain.Candidate, error) {
	key := sparql.PageKey(query, offset, limit)

	if page, ok := c.lookup(key, c.clock()); ok {
		return page, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if page, ok := c.lookup(key, c.clock()); ok {
			return page, nil
		}

		candidates, err := c.pager.Query(ctx, query, offset, limit)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedPage{
			candidates: candidates,
			expiresAt:  c.clock().Add(c.ttlWithJitterLocked()),
		}
		c.mu.Unlock()
		return candidates, nil
	})
	if err != nil {
		return nil, err
	}
	return copyCandidates(result.([]domain.Candidate)), nil
}

// Sweep drops expired windows and returns how many were removed.
func (c *PageCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, page := range c.cache {
		if !page.expiresAt.After(now) {
			delete(c.cache, key)
			removed++
		}
	}
	return removed
}

func (c *PageCache) lookup(key string, now time.Time) ([]domain.Candidate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if page, ok := c.cache[key]; ok && page.expiresAt.After(now) {
		return copyCandidates(page.candidates), true
	}
	return nil, false
}

// caller holds c.mu
func (c *PageCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func copyCandidates(in []domain.Candidate) []domain.Candidate {
	return append([]domain.Candidate(nil), in...)
}
