package resolver

import (
	"context"
	"errors"
	"net"
	"testing"
)

// fakeConn reports a fixed local address. Other net.Conn methods are unused.
type fakeConn struct {
	net.Conn
	local  net.Addr
	closed bool
}

func (c *fakeConn) LocalAddr() net.Addr { return c.local }
func (c *fakeConn) Close() error        { c.closed = true; return nil }

type fakeDialer struct {
	conn    *fakeConn
	err     error
	network string
	address string
}

func (d *fakeDialer) DialContext(_ context.Context, network, address string) (net.Conn, error) {
	d.network, d.address = network, address
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeResolver struct {
	addrs []net.IPAddr
	err   error
	host  string
}

func (r *fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	r.host = host
	return r.addrs, r.err
}

func hostnameFunc(name string, err error) func() (string, error) {
	return func() (string, error) { return name, err }
}

func ipAddrs(ips ...string) []net.IPAddr {
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out
}

func TestLocationSource_Strategies(t *testing.T) {
	unreachable := errors.New("connect: network is unreachable")

	tests := []struct {
		name       string
		dialer     *fakeDialer
		resolver   *fakeResolver
		hostname   func() (string, error)
		wantValue  string
		wantSource string
	}{
		{
			name:       "udp probe local address",
			dialer:     &fakeDialer{conn: &fakeConn{local: &net.UDPAddr{IP: net.ParseIP("192.168.1.42"), Port: 50123}}},
			resolver:   &fakeResolver{},
			hostname:   hostnameFunc("pi", nil),
			wantValue:  "192.168.1.42",
			wantSource: "udp-probe",
		},
		{
			name:       "probe fails, hostname resolves",
			dialer:     &fakeDialer{err: unreachable},
			resolver:   &fakeResolver{addrs: ipAddrs("fe80::1", "10.0.0.7")},
			hostname:   hostnameFunc("pi", nil),
			wantValue:  "10.0.0.7",
			wantSource: "hostname",
		},
		{
			name:       "unspecified probe address is a miss",
			dialer:     &fakeDialer{conn: &fakeConn{local: &net.UDPAddr{IP: net.IPv4zero}}},
			resolver:   &fakeResolver{addrs: ipAddrs("10.0.0.8")},
			hostname:   hostnameFunc("pi", nil),
			wantValue:  "10.0.0.8",
			wantSource: "hostname",
		},
		{
			name:       "everything fails yields loopback",
			dialer:     &fakeDialer{err: unreachable},
			resolver:   &fakeResolver{err: errors.New("no such host")},
			hostname:   hostnameFunc("pi", nil),
			wantValue:  LoopbackAddress,
			wantSource: FallbackSource,
		},
		{
			name:       "hostname unavailable yields loopback",
			dialer:     &fakeDialer{err: unreachable},
			resolver:   &fakeResolver{addrs: ipAddrs("10.0.0.9")},
			hostname:   hostnameFunc("", errors.New("uname failed")),
			wantValue:  LoopbackAddress,
			wantSource: FallbackSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewLocationSource(LocationConfig{},
				WithDialer(tt.dialer),
				WithHostResolver(tt.resolver),
				WithHostname(tt.hostname),
			)

			got := src.Resolve(context.Background())
			if got.Value != tt.wantValue {
				t.Errorf("Value = %q, want %q", got.Value, tt.wantValue)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
			if src.ResolveIP(context.Background()) != tt.wantValue {
				t.Error("ResolveIP() disagrees with Resolve()")
			}
		})
	}
}

func TestLocationSource_ProbeTarget(t *testing.T) {
	conn := &fakeConn{local: &net.UDPAddr{IP: net.ParseIP("172.16.0.5")}}
	dialer := &fakeDialer{conn: conn}

	src := NewLocationSource(LocationConfig{ProbeAddress: "1.1.1.1:53"}, WithDialer(dialer))
	src.ResolveIP(context.Background())

	if dialer.network != "udp" || dialer.address != "1.1.1.1:53" {
		t.Errorf("dialled %s %s, want udp 1.1.1.1:53", dialer.network, dialer.address)
	}
	if !conn.closed {
		t.Error("probe connection was not closed")
	}
}

func TestLocationSource_Hostname(t *testing.T) {
	src := NewLocationSource(LocationConfig{}, WithHostname(hostnameFunc("pi-kitchen", nil)))
	if got := src.Hostname(); got != "pi-kitchen" {
		t.Errorf("Hostname() = %q, want pi-kitchen", got)
	}

	src = NewLocationSource(LocationConfig{}, WithHostname(hostnameFunc("", errors.New("boom"))))
	if got := src.Hostname(); got != "" {
		t.Errorf("Hostname() = %q, want empty on error", got)
	}
}

func TestLocationSource_CustomFallback(t *testing.T) {
	src := NewLocationSource(LocationConfig{Fallback: "0.0.0.0"},
		WithDialer(&fakeDialer{err: errors.New("down")}),
		WithHostname(hostnameFunc("", errors.New("down"))),
	)
	if got := src.ResolveIP(context.Background()); got != "0.0.0.0" {
		t.Errorf("ResolveIP() = %q, want configured fallback", got)
	}
}

func TestPreferredIP(t *testing.T) {
	tests := []struct {
		name  string
		addrs []net.IPAddr
		want  string
	}{
		{"ipv4 over ipv6", ipAddrs("2001:db8::1", "192.168.0.2"), "192.168.0.2"},
		{"non-loopback over loopback", ipAddrs("127.0.1.1", "10.1.2.3"), "10.1.2.3"},
		{"ipv4 loopback over ipv6", ipAddrs("2001:db8::1", "127.0.1.1"), "127.0.1.1"},
		{"first of equals", ipAddrs("10.0.0.1", "10.0.0.2"), "10.0.0.1"},
		{"ipv6 only", ipAddrs("::1", "2001:db8::5"), "2001:db8::5"},
		{"skips unspecified", ipAddrs("0.0.0.0", "::1"), "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preferredIP(tt.addrs)
			if got.String() != tt.want {
				t.Errorf("preferredIP() = %v, want %s", got, tt.want)
			}
		})
	}

	if preferredIP(nil) != nil {
		t.Error("preferredIP(nil) should be nil")
	}
}
