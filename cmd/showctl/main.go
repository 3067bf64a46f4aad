// showctl is the operator's console: it is the only writer of the show
// state. Usage:
//
//	showctl phase countdown
//	showctl media countdown=https://example.com/clip.mp4
//	showctl reset
//	showctl stats
//	showctl watch
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
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
	"showsync/internal/presence"
	"showsync/internal/show"
)

func main() {
	configPath := flag.String("config", "showsync.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	natsURL := cfg.NATS.URL
	if natsURL == "" {
		browseCtx, browseCancel := context.WithTimeout(ctx, 10*time.Second)
		natsURL, err = discovery.Browse(browseCtx)
		browseCancel()
		if err != nil {
			fatal(fmt.Errorf("no NATS URL configured and no hub discovered: %w", err))
		}
	}

	nc, js, err := bus.Connect(bus.DefaultConfig(natsURL))
	if err != nil {
		fatal(err)
	}
	defer nc.Close()

	showKV, err := bus.EnsureBucket(ctx, js, show.Bucket)
	if err != nil {
		fatal(err)
	}

	// Operator writes are stamped with the authoritative clock too, so a
	// console with a skewed clock does not skew trigger timestamps.
	sync := clock.NewSync(clockwork.NewRealClock())
	if err := sync.Start(nc); err != nil {
		fatal(err)
	}
	defer sync.Stop()

	store := show.NewStore(showKV, sync)

	switch args[0] {
	case "phase":
		if len(args) != 2 {
			fatal(fmt.Errorf("usage: showctl phase <%s>", strings.Join(show.Phases(), "|")))
		}
		if err := store.SetPhase(ctx, args[1]); err != nil {
			fatal(err)
		}
		fmt.Printf("phase set to %s\n", args[1])

	case "media":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: showctl media <slot>=<ref> [<slot>=<ref>...]"))
		}
		refs := make(map[string]string)
		for _, pair := range args[1:] {
			slot, ref, ok := strings.Cut(pair, "=")
			if !ok {
				fatal(fmt.Errorf("invalid media assignment %q, want slot=ref", pair))
			}
			refs[slot] = ref
		}
		if err := store.SetMediaRefs(ctx, refs); err != nil {
			fatal(err)
		}
		fmt.Printf("updated %d media slot(s)\n", len(refs))

	case "reset":
		if err := store.Reset(ctx); err != nil {
			fatal(err)
		}
		fmt.Println("show state reset to defaults")

	case "stats":
		presenceKV, err := bus.EnsureBucket(ctx, js, presence.Bucket)
		if err != nil {
			fatal(err)
		}
		stats, err := presence.ReadStats(ctx, presenceKV)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("displays online: %d, offline: %d\n", stats.Online, stats.Offline)

	case "watch":
		stop, err := store.Subscribe(ctx, func(st show.State) {
			fmt.Printf("[%s] phase=%s trigger=%s media=%v\n",
				time.Now().Format(time.TimeOnly), st.Phase, st.Trigger().Format(time.RFC3339), st.MediaRefs)
		})
		if err != nil {
			fatal(err)
		}
		defer stop()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: showctl [-config file] <command>

commands:
  phase <name>             advance the show to a cue (%s)
  media <slot>=<ref> ...   set media slots
  reset                    rewrite the default show state
  stats                    print display presence counts
  watch                    stream show state changes
`, strings.Join(show.Phases(), ", "))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "showctl:", err)
	os.Exit(1)
}
