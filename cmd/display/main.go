package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"showsync/internal/bus"
	"showsync/internal/clock"
	"showsync/internal/config"
	"showsync/internal/discovery"
	"showsync/internal/playback"
	"showsync/internal/player/mpv"
	"showsync/internal/presence"
	"showsync/internal/show"
)

func main() {
	configPath := flag.String("config", "showsync.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	natsURL := cfg.NATS.URL
	if natsURL == "" {
		browseCtx, browseCancel := context.WithTimeout(ctx, 30*time.Second)
		natsURL, err = discovery.Browse(browseCtx)
		browseCancel()
		if err != nil {
			log.Fatal().Err(err).Msg("no NATS URL configured and no hub discovered")
		}
	}

	nc, js, err := bus.Connect(bus.DefaultConfig(natsURL))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	showKV, err := bus.EnsureBucket(ctx, js, show.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open show state bucket")
	}
	presenceKV, err := bus.EnsureBucket(ctx, js, presence.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open presence bucket")
	}

	local := clockwork.NewRealClock()

	// Corrected clock: follows the hub's beacon, trusts the local clock
	// until the first beat arrives.
	sync := clock.NewSync(local)
	if err := sync.Start(nc); err != nil {
		log.Fatal().Err(err).Msg("failed to start clock sync")
	}
	defer sync.Stop()

	tracker := presence.NewTracker(presenceKV, local, sync)
	if err := tracker.Register(ctx); err != nil {
		log.Error().Err(err).Msg("presence registration failed, continuing without it")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer closeCancel()
		if err := tracker.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("failed to mark presence offline")
		}
	}()

	socketPath := cfg.Display.MPVSocket
	if socketPath == "" {
		socketPath = mpv.DefaultSocketPath()
	}
	if cfg.Display.LaunchMPV {
		proc, err := mpv.Launch(socketPath, cfg.Display.Fullscreen)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to launch mpv")
		}
		defer proc.Process.Kill()
	}

	store := show.NewStore(showKV, sync)

	opts := playback.Options{
		Epsilon1:     cfg.Display.Epsilon1,
		Epsilon2:     cfg.Display.Epsilon2,
		StallTimeout: cfg.Display.StallTimeout.Std(),
	}

	// One fullscreen mpv instance carries every cue's element: only one
	// phase is ever active, so the slots share it through a single
	// Element that tracks what is actually loaded.
	player, err := mpv.NewPlayer(socketPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mpv")
	}
	defer player.Close()
	element := playback.NewElement(player)

	slots := []playback.Slot{
		{Phase: show.PhaseCountdown},
		{Phase: show.PhaseActivated, Unmuted: true},
	}
	syncs := make([]*playback.Synchronizer, 0, len(slots))
	for _, slot := range slots {
		s := playback.NewSynchronizer(slot, element, sync, opts)
		s.OnBuffering = func(buffering bool) {
			if buffering {
				log.Warn().Str("slot", slot.Phase).Msg("buffering")
			} else {
				log.Info().Str("slot", slot.Phase).Msg("buffering recovered")
			}
		}
		syncs = append(syncs, s)
	}
	go playback.Pump(ctx, player.Events(), syncs...)

	controller := playback.NewController(store, syncs, local, cfg.Display.CheckInterval.Std())

	if cfg.Display.HoldForUnlock {
		log.Info().Msg("press enter to unlock playback")
		go func() {
			bufio.NewReader(os.Stdin).ReadString('\n')
			controller.Unlock()
			log.Info().Msg("playback unlocked")
		}()
	} else {
		controller.Unlock()
	}

	if err := controller.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("playback controller failed")
	}
	log.Info().Msg("display shutdown complete")
}
