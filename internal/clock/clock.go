// Package clock estimates the offset between a display's local clock and
// the hub's authoritative clock. Every other component asks this package
// for a corrected "now"; the design compensates clock skew only, never
// network latency.
package clock

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subject carries the hub's periodic time beacon.
const Subject = "showsync.clock"

// Beacon is the payload the hub publishes on Subject.
type Beacon struct {
	ServerUnixMs int64 `json:"server_unix_ms"`
}

// Subscriber is the slice of *nats.Conn the sync needs.
type Subscriber interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Sync tracks offset = hubNow - localNow, refreshed on every beacon push.
// Until the first beacon arrives the offset is zero: the display trusts
// its own clock, which is a documented degraded mode, not a failure.
type Sync struct {
	local clockwork.Clock

	mu     sync.RWMutex
	offset time.Duration
	synced bool

	sub *nats.Subscription
}

// NewSync creates a Sync reading the given local clock.
func NewSync(local clockwork.Clock) *Sync {
	return &Sync{local: local}
}

// Start subscribes to the beacon subject. There is no client-side polling;
// the offset moves only when the hub pushes.
func (s *Sync) Start(conn Subscriber) error {
	sub, err := conn.Subscribe(Subject, func(msg *nats.Msg) {
		var b Beacon
		if err := json.Unmarshal(msg.Data, &b); err != nil {
			log.Error().Err(err).Msg("ignoring undecodable clock beacon")
			return
		}
		s.observe(b.ServerUnixMs)
	})
	if err != nil {
		return fmt.Errorf("subscribe to clock beacon: %w", err)
	}
	s.sub = sub
	return nil
}

// Stop cancels the beacon subscription.
func (s *Sync) Stop() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("clock beacon unsubscribe failed")
		}
		s.sub = nil
	}
}

func (s *Sync) observe(serverUnixMs int64) {
	offset := time.UnixMilli(serverUnixMs).Sub(s.local.Now())

	s.mu.Lock()
	first := !s.synced
	s.offset = offset
	s.synced = true
	s.mu.Unlock()

	if first {
		log.Info().Dur("offset", offset).Msg("clock synchronized with hub")
	}
}

// Now returns the local clock reading corrected by the current offset.
func (s *Sync) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local.Now().Add(s.offset)
}

// Offset returns the current skew estimate.
func (s *Sync) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Synced reports whether at least one beacon has been observed.
func (s *Sync) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}
