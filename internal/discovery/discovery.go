// Package discovery advertises and locates the showsync hub on the venue
// LAN over mDNS, so displays need zero network configuration.
package discovery

import (
	"context"
	"fmt"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

// Service is the mDNS service type the hub registers.
const Service = "_showsync._tcp"

const domain = "local."

// Register advertises the hub's NATS port. The caller shuts the returned
// server down on exit.
func Register(instance string, port int) (*zeroconf.Server, error) {
	server, err := zeroconf.Register(instance, Service, domain, port, []string{"role=hub"}, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	log.Info().Str("instance", instance).Int("port", port).Msg("hub advertised over mDNS")
	return server, nil
}

// Browse blocks until a hub is found or the context expires, returning a
// NATS URL for it.
func Browse(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("initialize mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, Service, domain, entries); err != nil {
		return "", fmt.Errorf("browse for hub: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("no hub found: %w", ctx.Err())
		case entry := <-entries:
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}
			url := fmt.Sprintf("nats://%s:%d", entry.AddrIPv4[0], entry.Port)
			log.Info().Str("instance", entry.Instance).Str("url", url).Msg("discovered hub")
			return url, nil
		}
	}
}
