package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"showsync/internal/bus"
)

// DefaultHeartbeat is how often a registered session refreshes LastSeen.
const DefaultHeartbeat = 10 * time.Second

// Clock supplies the timestamps written into presence records.
type Clock interface {
	Now() time.Time
}

// Tracker registers one session's liveness and keeps it fresh with a
// heartbeat. A display that dies without closing cannot write its own
// obituary; the hub's Sweeper flips its record offline once the
// heartbeats stop.
//
// The heartbeat cadence runs on the local clock, but record timestamps
// come from clock, which displays point at their skew-corrected time.
// The sweeper judges staleness against the hub clock; a display whose
// local clock lags must not look dead while it is still heartbeating.
type Tracker struct {
	kv        bus.KeyValue
	local     clockwork.Clock
	clock     Clock
	sessionID string
	heartbeat time.Duration

	mu          sync.Mutex
	registered  bool
	connectedAt time.Time
	stop        chan struct{}
}

// NewTracker creates a tracker with a fresh session id.
func NewTracker(kv bus.KeyValue, local clockwork.Clock, clock Clock) *Tracker {
	return &Tracker{
		kv:        kv,
		local:     local,
		clock:     clock,
		sessionID: uuid.New().String(),
		heartbeat: DefaultHeartbeat,
	}
}

// SessionID returns the opaque id this tracker's record is keyed by.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// Register creates this session's record online and starts the heartbeat.
// Idempotent per session: calling it again is a no-op.
func (t *Tracker) Register(ctx context.Context) error {
	t.mu.Lock()
	if t.registered {
		t.mu.Unlock()
		return nil
	}
	now := t.clock.Now()
	t.registered = true
	t.connectedAt = now
	t.stop = make(chan struct{})
	t.mu.Unlock()

	rec := Record{
		Online:        true,
		ConnectedAtMs: now.UnixMilli(),
		LastSeenMs:    now.UnixMilli(),
	}
	if err := WriteRecord(ctx, t.kv, t.sessionID, rec); err != nil {
		t.mu.Lock()
		t.registered = false
		t.mu.Unlock()
		return err
	}

	go t.run(ctx)
	log.Info().Str("session_id", t.sessionID).Msg("presence registered")
	return nil
}

func (t *Tracker) run(ctx context.Context) {
	ticker := t.local.NewTicker(t.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.Chan():
			now := t.clock.Now()
			rec := Record{
				Online:        true,
				ConnectedAtMs: t.connectedAt.UnixMilli(),
				LastSeenMs:    now.UnixMilli(),
			}
			if err := WriteRecord(ctx, t.kv, t.sessionID, rec); err != nil {
				log.Warn().Err(err).Msg("presence heartbeat failed")
			}
		}
	}
}

// Close stops the heartbeat and best-effort marks the record offline.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if !t.registered {
		t.mu.Unlock()
		return nil
	}
	t.registered = false
	close(t.stop)
	connectedAt := t.connectedAt
	t.mu.Unlock()

	rec := Record{
		Online:        false,
		ConnectedAtMs: connectedAt.UnixMilli(),
		LastSeenMs:    t.clock.Now().UnixMilli(),
	}
	return WriteRecord(ctx, t.kv, t.sessionID, rec)
}
