package hub

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"showsync/internal/bus"
	"showsync/internal/presence"
	"showsync/internal/show"
)

// Config holds hub service settings.
type Config struct {
	ConnectionConfig ConnectionConfig
	BeaconInterval   time.Duration
	SweepInterval    time.Duration
	PresenceTTL      time.Duration
	StatsInterval    time.Duration
}

// DefaultConfig returns hub defaults. The presence TTL is a few missed
// heartbeats, so a yanked power cable shows up within half a minute.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		BeaconInterval:   DefaultBeaconInterval,
		SweepInterval:    15 * time.Second,
		PresenceTTL:      30 * time.Second,
		StatsInterval:    10 * time.Second,
	}
}

// Service ties the hub together: state fan-out, clock beacon, presence
// sweeping, and per-websocket presence records.
type Service struct {
	config     Config
	store      *show.Store
	presenceKV bus.KeyValue
	cm         *ConnectionManager
	beacon     *Beacon
	sweeper    *presence.Sweeper
	clock      clockwork.Clock
}

// NewService wires a hub service.
func NewService(config Config, store *show.Store, presenceKV bus.KeyValue, pub Publisher, clk clockwork.Clock) *Service {
	s := &Service{
		config:     config,
		store:      store,
		presenceKV: presenceKV,
		cm:         NewConnectionManager(config.ConnectionConfig),
		beacon:     NewBeacon(pub, clk, config.BeaconInterval),
		sweeper:    presence.NewSweeper(presenceKV, clk, config.PresenceTTL, config.SweepInterval),
		clock:      clk,
	}

	// Each websocket session owns one presence record; the close of the
	// socket is its disconnect hook.
	s.cm.OnConnect = func(sessionID string) {
		now := s.clock.Now()
		rec := presence.Record{
			Online:        true,
			ConnectedAtMs: now.UnixMilli(),
			LastSeenMs:    now.UnixMilli(),
		}
		if err := presence.WriteRecord(context.Background(), s.presenceKV, sessionID, rec); err != nil {
			log.Warn().Err(err).Msg("failed to create presence record for display")
		}
	}
	s.cm.OnDisconnect = func(sessionID string) {
		if err := presence.MarkOffline(context.Background(), s.presenceKV, sessionID, s.clock.Now()); err != nil {
			log.Warn().Err(err).Msg("failed to mark display offline")
		}
	}

	return s
}

// ConnectionManager exposes the websocket pool for the HTTP handlers.
func (s *Service) ConnectionManager() *ConnectionManager {
	return s.cm
}

// Run starts all hub loops and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log.Info().Msg("hub service starting")

	go s.cm.Start(ctx.Done())
	go s.beacon.Run(ctx)
	go s.sweeper.Run(ctx)

	stop, err := s.store.Subscribe(ctx, func(st show.State) {
		ev, err := NewStateEvent(s.clock.Now(), st)
		if err != nil {
			log.Error().Err(err).Msg("failed to build state event")
			return
		}
		s.cm.Broadcast(ev)
	})
	if err != nil {
		return err
	}
	defer stop()

	ticker := s.clock.NewTicker(s.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("hub service stopped")
			return nil
		case <-ticker.Chan():
			s.broadcastPresence(ctx)
			s.broadcastClock()
		}
	}
}

func (s *Service) broadcastPresence(ctx context.Context) {
	stats, err := presence.ReadStats(ctx, s.presenceKV)
	if err != nil {
		log.Warn().Err(err).Msg("presence stats read failed")
		return
	}
	ev, err := NewPresenceEvent(s.clock.Now(), stats)
	if err != nil {
		return
	}
	s.cm.Broadcast(ev)
}

func (s *Service) broadcastClock() {
	ev, err := NewClockEvent(s.clock.Now())
	if err != nil {
		return
	}
	s.cm.Broadcast(ev)
}
