package app

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically reclaims abandoned attempts. The same operation is
// exposed over HTTP for manual maintenance.
type Sweeper struct {
	engine   *AttemptEngine
	interval time.Duration
}

func NewSweeper(engine *AttemptEngine, interval time.Duration) *Sweeper {
	return &Sweeper{engine: engine, interval: interval}
}

// Run blocks, sweeping on every tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.engine.SweepAbandoned(ctx)
			if err != nil {
				log.Printf("sweep abandoned attempts: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("swept %d abandoned attempts", removed)
			}
		}
	}
}
