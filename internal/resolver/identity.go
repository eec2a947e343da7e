package resolver

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"
)

// Identity defaults.
const (
	DefaultCPUInfoPath    = "/proc/cpuinfo"
	DefaultDiagField      = "28"
	DefaultCommandTimeout = 5 * time.Second
	UnknownSerial         = "UNKNOWN_SERIAL"

	// serialKey is the /proc/cpuinfo key holding the board serial.
	serialKey = "Serial"
)

// IdentityConfig configures IdentitySource. Zero values take the defaults.
type IdentityConfig struct {
	// CPUInfoPath is read for a "Serial: ..." line.
	CPUInfoPath string

	// DumpCommand prints the same file. Empty disables the strategy.
	DumpCommand []string

	// DiagCommand is the vendor OTP dump. Empty disables the strategy.
	DiagCommand []string

	// DiagField is the key of the DiagCommand line holding the serial.
	DiagField string

	// CommandTimeout bounds each command.
	CommandTimeout time.Duration

	// Unknown is returned when every strategy misses.
	Unknown string
}

// DefaultIdentityConfig returns the Raspberry Pi oriented defaults.
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		CPUInfoPath:    DefaultCPUInfoPath,
		DumpCommand:    []string{"cat", DefaultCPUInfoPath},
		DiagCommand:    []string{"vcgencmd", "otp_dump"},
		DiagField:      DefaultDiagField,
		CommandTimeout: DefaultCommandTimeout,
		Unknown:        UnknownSerial,
	}
}

// IdentityOption customises an IdentitySource.
type IdentityOption func(*IdentitySource)

// WithCommandRunner replaces os/exec for the command strategies.
func WithCommandRunner(r CommandRunner) IdentityOption {
	return func(s *IdentitySource) { s.runner = r }
}

// WithIdentityLogger sets the chain logger.
func WithIdentityLogger(l Logger) IdentityOption {
	return func(s *IdentitySource) { s.logger = l }
}

// IdentitySource resolves the local device serial number.
type IdentitySource struct {
	cfg    IdentityConfig
	runner CommandRunner
	logger Logger
	chain  *Chain
}

// NewIdentitySource builds the serial chain from cfg.
func NewIdentitySource(cfg IdentityConfig, opts ...IdentityOption) *IdentitySource {
	if cfg.CPUInfoPath == "" {
		cfg.CPUInfoPath = DefaultCPUInfoPath
	}
	if cfg.DiagField == "" {
		cfg.DiagField = DefaultDiagField
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.Unknown == "" {
		cfg.Unknown = UnknownSerial
	}

	s := &IdentitySource{cfg: cfg, runner: ExecRunner{}}
	for _, opt := range opts {
		opt(s)
	}

	strategies := []Strategy{{Name: "cpuinfo", Resolve: s.fromFile}}
	if len(cfg.DumpCommand) > 0 {
		strategies = append(strategies, Strategy{
			Name:    "cpuinfo-command",
			Resolve: s.fromCommand(cfg.DumpCommand, serialKey),
		})
	}
	if len(cfg.DiagCommand) > 0 {
		strategies = append(strategies, Strategy{
			Name:    "vcgencmd",
			Resolve: s.fromCommand(cfg.DiagCommand, cfg.DiagField),
		})
	}

	s.chain = NewChain("serial", cfg.Unknown, strategies...)
	if s.logger != nil {
		s.chain.SetLogger(s.logger)
	}
	return s
}

// ResolveSerial returns the device serial, or the unknown sentinel.
func (s *IdentitySource) ResolveSerial(ctx context.Context) string {
	return s.chain.Resolve(ctx).Value
}

// Resolve returns the serial together with the strategy that produced it.
func (s *IdentitySource) Resolve(ctx context.Context) Resolution {
	return s.chain.Resolve(ctx)
}

// Unknown returns the sentinel used when the serial cannot be determined.
func (s *IdentitySource) Unknown() string {
	return s.cfg.Unknown
}

func (s *IdentitySource) fromFile(context.Context) Result {
	f, err := os.Open(s.cfg.CPUInfoPath)
	if err != nil {
		return NotFoundf("open %s: %v", s.cfg.CPUInfoPath, err)
	}
	defer f.Close()

	return lookupKey(f, serialKey)
}

func (s *IdentitySource) fromCommand(argv []string, key string) func(context.Context) Result {
	return func(ctx context.Context) Result {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
		defer cancel()

		out, err := s.runner.Run(ctx, argv[0], argv[1:]...)
		if err != nil {
			return NotFoundf("%s: %v", strings.Join(argv, " "), err)
		}
		return lookupKey(bytes.NewReader(out), key)
	}
}

// lookupKey scans "key: value" lines and returns the first non-empty
// value whose trimmed key equals key. Only the first colon separates.
func lookupKey(r io.Reader, key string) Result {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		k, v, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(k) != key {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return Found(v)
		}
	}
	if err := scanner.Err(); err != nil {
		return NotFoundf("reading output: %v", err)
	}
	return NotFoundf("no %q line", key)
}
