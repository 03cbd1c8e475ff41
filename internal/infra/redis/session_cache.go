package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-quiz-service/internal/domain"
)

// SessionCache is a Redis implementation of app.SessionCache, shared by every
// service instance pointing at the same Redis.
// Each session config is stored as JSON: SET trivia:session:{sessionID} {json} EX ttl
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a cache; a non-positive ttl stores keys without expiry.
func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl < 0 {
		ttl = 0
	}
	return &SessionCache{client: client, ttl: ttl}
}

func (s *SessionCache) Put(ctx context.Context, sessionID string, cfg domain.SessionConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err()
}

func (s *SessionCache) Get(ctx context.Context, sessionID string) (domain.SessionConfig, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionConfig{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionConfig{}, fmt.Errorf("get session: %w", err)
	}
	var cfg domain.SessionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.SessionConfig{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return cfg, nil
}

func (s *SessionCache) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *SessionCache) key(sessionID string) string {
	return "trivia:session:" + sessionID
}
