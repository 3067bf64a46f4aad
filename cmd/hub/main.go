package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"showsync/internal/bus"
	"showsync/internal/config"
	"showsync/internal/discovery"
	"showsync/internal/hub"
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

	natsURL := cfg.NATS.URL
	if natsURL == "" {
		natsURL = fmt.Sprintf("nats://localhost:%d", cfg.Hub.NATSPort)
	}

	nc, js, err := bus.Connect(bus.DefaultConfig(natsURL))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	showKV, err := bus.EnsureBucket(ctx, js, show.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to provision show state bucket")
	}
	presenceKV, err := bus.EnsureBucket(ctx, js, presence.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to provision presence bucket")
	}

	clk := clockwork.NewRealClock()
	store := show.NewStore(showKV, clk)

	hubConfig := hub.DefaultConfig()
	hubConfig.BeaconInterval = cfg.Hub.BeaconInterval.Std()
	hubConfig.SweepInterval = cfg.Hub.SweepInterval.Std()
	hubConfig.PresenceTTL = cfg.Hub.PresenceTTL.Std()
	hubConfig.StatsInterval = cfg.Hub.StatsInterval.Std()

	service := hub.NewService(hubConfig, store, presenceKV, nc, clk)

	// Advertise the NATS endpoint so displays find us without config.
	mdns, err := discovery.Register(cfg.Hub.Instance, cfg.Hub.NATSPort)
	if err != nil {
		log.Warn().Err(err).Msg("mDNS registration failed, displays need an explicit NATS URL")
	} else {
		defer mdns.Shutdown()
	}

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	handler := cors.Default().Handler(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Hub.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := service.Run(ctx); err != nil {
			log.Error().Err(err).Msg("hub service failed")
			cancel()
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Str("nats_url", natsURL).Msg("hub listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("hub shutdown complete")
}
