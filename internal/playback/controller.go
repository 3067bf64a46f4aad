package playback

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"showsync/internal/show"
)

// DefaultCheckInterval is the drift-check cadence: frequent enough to
// bound drift, sparse enough to avoid thrashing the element.
const DefaultCheckInterval = 2 * time.Second

// StateSource is the slice of the show-state store the controller needs.
type StateSource interface {
	Subscribe(ctx context.Context, handler func(show.State)) (func(), error)
}

// Controller owns one synchronizer per media slot, fans show-state changes
// out to them, and runs the shared drift ticker. Unsubscribing and
// stopping the ticker happen together on return from Run, so no callback
// ever operates on a torn-down element.
type Controller struct {
	source   StateSource
	syncs    []*Synchronizer
	ticker   clockwork.Clock
	interval time.Duration
}

// NewController creates a controller. ticker is the local clock used for
// the drift-check cadence; each synchronizer carries its own corrected
// clock for position math.
func NewController(source StateSource, syncs []*Synchronizer, ticker clockwork.Clock, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Controller{
		source:   source,
		syncs:    syncs,
		ticker:   ticker,
		interval: interval,
	}
}

// Unlock releases the autoplay gate on every element. Idempotent.
func (c *Controller) Unlock() {
	for _, s := range c.syncs {
		s.Unlock()
	}
}

// Apply dispatches one show-state record to every synchronizer.
// Deactivations run first so a shared element is released before the
// newly active slot claims it; otherwise a rewind would pause the element
// right after the incoming slot pressed play.
func (c *Controller) Apply(st show.State) {
	for _, s := range c.syncs {
		if s.slot.Phase != st.Phase {
			s.Apply(st)
		}
	}
	for _, s := range c.syncs {
		if s.slot.Phase == st.Phase {
			s.Apply(st)
		}
	}
}

// Run subscribes to the show state and drives drift checks until the
// context is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	stop, err := c.source.Subscribe(ctx, c.Apply)
	if err != nil {
		return err
	}
	defer stop()

	ticker := c.ticker.NewTicker(c.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", c.interval).Int("slots", len(c.syncs)).Msg("playback controller running")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			for _, s := range c.syncs {
				s.Tick()
			}
		}
	}
}

// Pump forwards element lifecycle events to synchronizers until the
// channel closes or the context is cancelled. Run it once per player;
// slots sharing that player all receive its events and each ignores the
// ones that do not apply to its current state.
func Pump(ctx context.Context, events <-chan Event, syncs ...*Synchronizer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, s := range syncs {
				s.HandleEvent(ev)
			}
		}
	}
}
