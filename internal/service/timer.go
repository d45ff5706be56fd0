package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper periodically evicts finished and idle matches from memory. Idle
// matches still in progress are only evicted when a cache can restore them.
type Reaper struct {
	svc      *MatchService
	interval time.Duration
	idle     time.Duration
}

// NewReaper creates a Reaper.
func NewReaper(svc *MatchService, interval, idle time.Duration) *Reaper {
	return &Reaper{svc: svc, interval: interval, idle: idle}
}

// Start runs the eviction loop until ctx is done.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Dur("idle", r.idle).Msg("Match reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Match reaper stopped")
			return
		case <-ticker.C:
			if n := r.svc.Evict(time.Now().Add(-r.idle)); n > 0 {
				log.Info().Int("count", n).Msg("Evicted matches from memory")
			}
		}
	}
}

// Evict drops matches that are finished or were last touched before cutoff.
// Matches busy with a request are skipped. It returns the number evicted.
func (s *MatchService) Evict(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, lm := range s.live {
		if !lm.mu.TryLock() {
			continue
		}
		evict := lm.finished || (s.cache != nil && lm.touched.Before(cutoff))
		if evict {
			if lm.events != nil && !lm.finished {
				if err := lm.events.Close(); err != nil {
					log.Warn().Err(err).Str("matchId", id).Msg("Failed to close event log")
				}
			}
			delete(s.live, id)
			n++
		}
		lm.mu.Unlock()
	}
	return n
}
