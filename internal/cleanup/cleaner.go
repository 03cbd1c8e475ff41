package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper drops entries that expired before now and reports how many went.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Cleaner periodically sweeps in-process caches so abandoned sessions and
// stale query pages do not accumulate.
type Cleaner struct {
	sweepers []Sweeper
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewCleaner creates a cleanup worker
func NewCleaner(interval time.Duration, log zerolog.Logger, sweepers ...Sweeper) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Cleaner{
		sweepers: sweepers,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	c.log.Info().Dur("interval", c.interval).Msg("cleanup worker started")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("cleanup worker stopped")
			return
		case <-ticker.C:
			c.RunOnce()
		}
	}
}

// RunOnce sweeps every registered cache and returns the number of removed entries.
func (c *Cleaner) RunOnce() int {
	now := c.now()
	removed := 0
	for _, s := range c.sweepers {
		removed += s.Sweep(now)
	}
	if removed > 0 {
		c.log.Debug().Int("removed", removed).Msg("expired cache entries swept")
	}
	return removed
}
