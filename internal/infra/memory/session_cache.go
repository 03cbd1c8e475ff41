package memory

import (
	"context"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// SessionCache is an in-memory implementation of app.SessionCache.
// Entries are scoped to the process; a multi-instance deployment needs the Redis cache.
type SessionCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	cfg       domain.SessionConfig
	expiresAt time.Time // zero means no expiry
}

// NewSessionCache creates a cache whose entries expire ttl after their last Put.
// A non-positive ttl disables expiry.
func NewSessionCache(ttl time.Duration) *SessionCache {
	return NewSessionCacheWithClock(ttl, time.Now)
}

// NewSessionCacheWithClock is test-only for deterministic expiry.
func NewSessionCacheWithClock(ttl time.Duration, now func() time.Time) *SessionCache {
	return &SessionCache{
		ttl:      ttl,
		clock:    now,
		sessions: make(map[string]sessionEntry),
	}
}

func (c *SessionCache) Put(_ context.Context, sessionID string, cfg domain.SessionConfig) error {
	entry := sessionEntry{cfg: cfg}
	if c.ttl > 0 {
		entry.expiresAt = c.clock().Add(c.ttl)
	}
	c.mu.Lock()
	c.sessions[sessionID] = entry
	c.mu.Unlock()
	return nil
}

func (c *SessionCache) Get(_ context.Context, sessionID string) (domain.SessionConfig, error) {
	c.mu.RLock()
	entry, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok || entry.expired(c.clock()) {
		return domain.SessionConfig{}, domain.ErrSessionNotFound
	}
	return entry.cfg, nil
}

func (c *SessionCache) Delete(_ context.Context, sessionID string) error {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	return nil
}

// Sweep removes expired sessions and returns how many were removed.
func (c *SessionCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, entry := range c.sessions {
		if entry.expired(now) {
			delete(c.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored sessions, expired ones included.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (e sessionEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}
