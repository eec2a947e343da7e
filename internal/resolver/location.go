package resolver

import (
	"context"
	"net"
	"os"
	"time"
)

// Location defaults.
const (
	DefaultProbeAddress = "8.8.8.8:80"
	DefaultDialTimeout  = 2 * time.Second
	LoopbackAddress     = "127.0.0.1"
)

// LocationConfig configures LocationSource. Zero values take the defaults.
type LocationConfig struct {
	ProbeAddress string
	DialTimeout  time.Duration
	Fallback     string
}

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// HostResolver resolves host names. *net.Resolver satisfies it.
type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// LocationOption customises a LocationSource.
type LocationOption func(*LocationSource)

// WithDialer replaces the UDP probe dialer.
func WithDialer(d Dialer) LocationOption {
	return func(s *LocationSource) { s.dialer = d }
}

// WithHostResolver replaces name resolution.
func WithHostResolver(r HostResolver) LocationOption {
	return func(s *LocationSource) { s.resolver = r }
}

// WithHostname replaces os.Hostname.
func WithHostname(fn func() (string, error)) LocationOption {
	return func(s *LocationSource) { s.hostname = fn }
}

// WithLocationLogger sets the chain logger.
func WithLocationLogger(l Logger) LocationOption {
	return func(s *LocationSource) { s.logger = l }
}

// LocationSource resolves the device's own IP address.
type LocationSource struct {
	cfg      LocationConfig
	dialer   Dialer
	resolver HostResolver
	hostname func() (string, error)
	logger   Logger
	chain    *Chain
}

// NewLocationSource builds the address chain from cfg.
func NewLocationSource(cfg LocationConfig, opts ...LocationOption) *LocationSource {
	if cfg.ProbeAddress == "" {
		cfg.ProbeAddress = DefaultProbeAddress
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Fallback == "" {
		cfg.Fallback = LoopbackAddress
	}

	s := &LocationSource{
		cfg:      cfg,
		dialer:   &net.Dialer{},
		resolver: net.DefaultResolver,
		hostname: os.Hostname,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.chain = NewChain("ip_address", cfg.Fallback,
		Strategy{Name: "udp-probe", Resolve: s.fromProbe},
		Strategy{Name: "hostname", Resolve: s.fromHostname},
	)
	if s.logger != nil {
		s.chain.SetLogger(s.logger)
	}
	return s
}

// ResolveIP returns the device address, or the loopback fallback.
func (s *LocationSource) ResolveIP(ctx context.Context) string {
	return s.chain.Resolve(ctx).Value
}

// Resolve returns the address together with the strategy that produced it.
func (s *LocationSource) Resolve(ctx context.Context) Resolution {
	return s.chain.Resolve(ctx)
}

// Hostname returns the local host name, or "" if it cannot be read.
func (s *LocationSource) Hostname() string {
	name, err := s.hostname()
	if err != nil {
		return ""
	}
	return name
}

func (s *LocationSource) fromProbe(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	conn, err := s.dialer.DialContext(ctx, "udp", s.cfg.ProbeAddress)
	if err != nil {
		return NotFoundf("dial %s: %v", s.cfg.ProbeAddress, err)
	}
	defer conn.Close()

	var ip net.IP
	switch addr := conn.LocalAddr().(type) {
	case *net.UDPAddr:
		ip = addr.IP
	case nil:
		return NotFound("no local address")
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return NotFoundf("local address %q: %v", addr.String(), err)
		}
		ip = net.ParseIP(host)
	}

	if ip == nil || ip.IsUnspecified() {
		return NotFound("unspecified local address")
	}
	return Found(ip.String())
}

func (s *LocationSource) fromHostname(ctx context.Context) Result {
	name, err := s.hostname()
	if err != nil {
		return NotFoundf("hostname: %v", err)
	}
	if name == "" {
		return NotFound("empty hostname")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	addrs, err := s.resolver.LookupIPAddr(ctx, name)
	if err != nil {
		return NotFoundf("lookup %s: %v", name, err)
	}

	ip := preferredIP(addrs)
	if ip == nil {
		return NotFoundf("no addresses for %s", name)
	}
	return Found(ip.String())
}

// preferredIP picks IPv4 over IPv6, and non-loopback over loopback
// within each family.
func preferredIP(addrs []net.IPAddr) net.IP {
	var best net.IP
	bestRank := -1
	for _, a := range addrs {
		if a.IP == nil || a.IP.IsUnspecified() {
			continue
		}
		rank := 0
		if a.IP.To4() != nil {
			rank += 2
		}
		if !a.IP.IsLoopback() {
			rank++
		}
		if rank > bestRank {
			best, bestRank = a.IP, rank
		}
	}
	return best
}
