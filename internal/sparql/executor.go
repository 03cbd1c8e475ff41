package sparql

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

const (
	DefaultMaxOffset = 100
	DefaultPageSize  = 100
)

// Pager fetches one window of query results.
type Pager interface {
	Query(ctx context.Context, query string, offset, limit int) ([]domain.Candidate, error)
}

// Executor runs queries against a random result window so repeated calls on the
// same query surface different entities.
type Executor struct {
	pager     Pager
	maxOffset int
	pageSize  int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewExecutor wraps pager. Non-positive sizes fall back to the defaults; a nil rnd
// is seeded from the clock.
func NewExecutor(pager Pager, maxOffset, pageSize int, rnd *rand.Rand) *Executor {
	if maxOffset <= 0 {
		maxOffset = DefaultMaxOffset
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Executor{pager: pager, maxOffset: maxOffset, pageSize: pageSize, rnd: rnd}
}

// Execute runs query with an offset drawn uniformly from [0, maxOffset) and a fixed page size.
func (e *Executor) Execute(ctx context.Context, query string) ([]domain.Candidate, error) {
	e.mu.Lock()
	offset := e.rnd.Intn(e.maxOffset)
	e.mu.Unlock()
	return e.pager.Query(ctx, query, offset, e.pageSize)
}

// PageKey identifies one result window of a query for caching.
func PageKey(query string, offset, limit int) string {
	sum := sha1.Sum([]byte(query))
	return hex.EncodeToString(sum[:]) + ":" + strconv.Itoa(offset) + ":" + strconv.Itoa(limit)
}
