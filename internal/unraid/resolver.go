package unraid

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
)

const resolverRefreshInterval = 5 * time.Minute

var (
	resolver     *dnscache.Resolver
	resolverOnce sync.Once
)

func cachedResolver() *dnscache.Resolver {
	resolverOnce.Do(func() {
		resolver = &dnscache.Resolver{}

		go func() {
			ticker := time.NewTicker(resolverRefreshInterval)
			defer ticker.Stop()

			for range ticker.C {
				resolver.Refresh(true)
				log.Debug().
					Dur("interval", resolverRefreshInterval).
					Msg("DNS cache refreshed")
			}
		}()
	})
	return resolver
}

// DialContext dials through the shared DNS cache. The Unraid host is polled
// by every tool call, so lookups are served from memory between refreshes.
func DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	if net.ParseIP(host) != nil {
		return dialer.DialContext(ctx, network, address)
	}

	ips, err := cachedResolver().LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no IP addresses found", Name: host}
	}

	var lastErr error
	for _, ip := range ips {
		conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if dialErr == nil {
			return conn, nil
		}
		lastErr = dialErr
	}
	return nil, lastErr
}
