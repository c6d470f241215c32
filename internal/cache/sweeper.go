package cache

import (
	"context"
	"log"
	"time"
)

// Sweeper deletes expired cache entries on a fixed interval. Failures
// are logged only; the next run retries. Runs outside the request path.
type Sweeper struct {
	store    Store
	ttlDays  int
	interval time.Duration
	logger   *log.Logger
}

func NewSweeper(store Store, ttlDays int, interval time.Duration, logger *log.Logger) *Sweeper {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Sweeper{
		store:    store,
		ttlDays:  ttlDays,
		interval: interval,
		logger:   logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.store.Cleanup(ctx, s.ttlDays)
			if err != nil {
				if s.logger != nil {
					s.logger.Printf("cache cleanup failed ttl_days=%d err=%v", s.ttlDays, err)
				}
				continue
			}
			if s.logger != nil && deleted > 0 {
				s.logger.Printf("cache cleanup removed entries count=%d ttl_days=%d", deleted, s.ttlDays)
			}
		}
	}
}
