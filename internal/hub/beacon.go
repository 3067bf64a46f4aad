package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"showsync/internal/clock"
)

// DefaultBeaconInterval is how often the hub publishes its clock.
const DefaultBeaconInterval = 5 * time.Second

// Publisher is the slice of *nats.Conn the beacon needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Beacon periodically broadcasts the hub's clock on the beacon subject.
// The hub's clock is the authoritative clock of the deployment; displays
// fold each push into their skew estimate.
type Beacon struct {
	pub      Publisher
	clock    clockwork.Clock
	interval time.Duration
}

// NewBeacon creates a beacon.
func NewBeacon(pub Publisher, clk clockwork.Clock, interval time.Duration) *Beacon {
	if interval <= 0 {
		interval = DefaultBeaconInterval
	}
	return &Beacon{pub: pub, clock: clk, interval: interval}
}

// Run publishes until the context is cancelled. One beat is published
// immediately so freshly started displays converge without waiting a full
// interval.
func (b *Beacon) Run(ctx context.Context) {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	b.beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			b.beat()
		}
	}
}

func (b *Beacon) beat() {
	payload, err := json.Marshal(clock.Beacon{ServerUnixMs: b.clock.Now().UnixMilli()})
	if err != nil {
		return
	}
	if err := b.pub.Publish(clock.Subject, payload); err != nil {
		log.Warn().Err(err).Msg("clock beacon publish failed")
	}
}
