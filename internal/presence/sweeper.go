package presence

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"showsync/internal/bus"
)

// Sweeper runs on the hub and flips records offline once their heartbeats
// go stale. This is the server-side disconnect hook: a display that
// crashes or drops off the network gets marked offline here.
//
// Records are never deleted, so a flaky display that reconnects N times
// leaves N-1 offline records behind. That matches the source behavior;
// this loop is where retention would go if a deployment needs it.
type Sweeper struct {
	kv       bus.KeyValue
	clock    clockwork.Clock
	ttl      time.Duration
	interval time.Duration
}

// NewSweeper creates a sweeper. Records whose LastSeen is older than ttl
// are considered disconnected.
func NewSweeper(kv bus.KeyValue, clock clockwork.Clock, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{kv: kv, clock: clock, ttl: ttl, interval: interval}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			flipped, err := s.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("presence sweep failed")
				continue
			}
			if flipped > 0 {
				log.Info().Int("sessions", flipped).Msg("marked stale sessions offline")
			}
		}
	}
}

// Sweep performs one pass, returning how many records were flipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return 0, err
	}
	defer lister.Stop()

	now := s.clock.Now()
	flipped := 0
	for key := range lister.Keys() {
		rec, err := ReadRecord(ctx, s.kv, key)
		if err != nil {
			continue
		}
		if !rec.Online {
			continue
		}
		if now.Sub(time.UnixMilli(rec.LastSeenMs)) <= s.ttl {
			continue
		}
		rec.Online = false
		if err := WriteRecord(ctx, s.kv, key, rec); err != nil {
			log.Warn().Err(err).Str("session_id", key).Msg("failed to mark session offline")
			continue
		}
		flipped++
	}
	return flipped, nil
}
