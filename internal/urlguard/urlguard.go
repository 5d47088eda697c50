// Package urlguard validates outbound fetch targets so the scraper
// cannot be pointed at internal infrastructure.
package urlguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidURL         = errors.New("url_invalid")
	ErrSchemeForbidden    = errors.New("scheme_forbidden")
	ErrLocalhostRefused   = errors.New("localhost_refused")
	ErrNotAllowlisted     = errors.New("not_allowlisted")
	ErrDNSFailed          = errors.New("dns_failed")
	ErrNoRecords          = errors.New("no_records")
	ErrPrivateDestination = errors.New("private_destination")
)

// Resolver is the subset of net.Resolver the guard needs. Swappable in
// tests.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type Guard struct {
	allowedHosts map[string]struct{}
	resolver     Resolver
	timeout      time.Duration
}

// New builds a guard. allowedHosts is an optional allowlist of
// hostnames; empty means any public host is permitted.
func New(allowedHosts []string) *Guard {
	g := &Guard{
		resolver: net.DefaultResolver,
		timeout:  10 * time.Second,
	}
	if len(allowedHosts) > 0 {
		g.allowedHosts = make(map[string]struct{}, len(allowedHosts))
		for _, h := range allowedHosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" {
				g.allowedHosts[h] = struct{}{}
			}
		}
	}
	return g
}

// WithResolver overrides DNS resolution, for tests.
func (g *Guard) WithResolver(r Resolver) *Guard {
	g.resolver = r
	return g
}

// Validate parses rawURL, checks scheme and allowlist, resolves the
// host and rejects private, loopback and link-local destinations.
func (g *Guard) Validate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrSchemeForbidden, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if host == "localhost" {
		return ErrLocalhostRefused
	}
	if g.allowedHosts != nil {
		if _, ok := g.allowedHosts[host]; !ok {
			return fmt.Errorf("%w: %s", ErrNotAllowlisted, host)
		}
	}

	// Literal IPs skip DNS but still go through the range checks.
	if ip := net.ParseIP(host); ip != nil {
		if isForbidden(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateDestination, ip)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDNSFailed, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: %s", ErrNoRecords, host)
	}
	for _, addr := range addrs {
		if isForbidden(addr.IP) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateDestination, host, addr.IP)
		}
	}
	return nil
}

var forbiddenNets []*net.IPNet

func init() {
	for _, cidr := range []string{
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // RFC1918
		"172.16.0.0/12",  // RFC1918
		"192.168.0.0/16", // RFC1918
		"169.254.0.0/16", // link-local
		"::1/128",        // loopback
		"fe80::/10",      // link-local
		"fc00::/7",       // ULA
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		forbiddenNets = append(forbiddenNets, n)
	}
}

func isForbidden(ip net.IP) bool {
	if ip.IsUnspecified() {
		return true
	}
	for _, n := range forbiddenNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
