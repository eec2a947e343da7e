package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-fleet/internal/device"
	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
	"github.com/nerrad567/gray-logic-fleet/internal/infrastructure/mqtt"
)

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// writeConfig writes a minimal config with the given database section and
// points FLEET_CONFIG at it.
func writeConfig(t *testing.T, database string, port int) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`
site:
  id: test-site

database:
%s

identity:
  cpuinfo_path: /nonexistent/cpuinfo
  dump_command: []
  diag_command: []

location:
  probe_address: "127.0.0.1:9"
  dial_timeout: 100ms

api:
  host: "127.0.0.1"
  port: %d

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`, database, port)

	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("FLEET_CONFIG", configPath)
}

// runAsync starts run in the background and returns its result channel.
func runAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()
	return done
}

// waitForHealth polls the health endpoint until it answers.
func waitForHealth(t *testing.T, port int) {
	t.Helper()

	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) //nolint:noctx // Test helper
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("server on port %d never became healthy", port)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("FLEET_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

func TestRun_InvalidDriver(t *testing.T) {
	writeConfig(t, `  driver: mongodb`, freePort(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an unknown database driver")
	}
}

func TestRun_MemoryStoreStartupAndShutdown(t *testing.T) {
	port := freePort(t)
	writeConfig(t, `  driver: memory`, port)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx)

	waitForHealth(t, port)

	resp, err := http.Post( //nolint:noctx // Test request
		fmt.Sprintf("http://127.0.0.1:%d/register-device", port),
		"application/json",
		strings.NewReader(`{"serial":"10000000abcdef01","ip_address":"10.0.0.7"}`),
	)
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("register status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() returned error on clean shutdown: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after context cancellation")
	}
}

func TestRun_SQLiteStartupCreatesDatabase(t *testing.T) {
	port := freePort(t)
	dbPath := filepath.Join(t.TempDir(), "data", "fleet.db")
	writeConfig(t, fmt.Sprintf("  driver: sqlite3\n  path: %q\n  bootstrap_schema: true", dbPath), port)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx)

	waitForHealth(t, port)

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	resp, err := http.Post(base+"/register-device", "application/json", //nolint:noctx // Test request
		strings.NewReader(`{"serial":"10000000abcdef02"}`))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(base + "/audit?serial=10000000abcdef02") //nolint:noctx // Test request
	if err != nil {
		t.Fatalf("audit request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("audit status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() returned error on clean shutdown: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after context cancellation")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("FLEET_CONFIG", "")
		if got := getConfigPath(); got != defaultConfigPath {
			t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("FLEET_CONFIG", "/etc/fleet/config.yaml")
		if got := getConfigPath(); got != "/etc/fleet/config.yaml" {
			t.Errorf("getConfigPath() = %q, want /etc/fleet/config.yaml", got)
		}
	})
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	if err := healthCheck(ctx, nil); err != nil {
		t.Errorf("healthCheck(nil) = %v, want nil", err)
	}

	ok := []namedCheck{{"database", fakeChecker{}}, {"mqtt", fakeChecker{}}}
	if err := healthCheck(ctx, ok); err != nil {
		t.Errorf("healthCheck(all ok) = %v, want nil", err)
	}

	errDown := errors.New("down")
	failing := []namedCheck{
		{"database", fakeChecker{}},
		{"mqtt", fakeChecker{err: errDown}},
		{"influxdb", fakeChecker{err: errDown}},
	}
	err := healthCheck(ctx, failing)
	if !errors.Is(err, errDown) {
		t.Fatalf("healthCheck() = %v, want wrapped errDown", err)
	}
	for _, name := range []string{"mqtt", "influxdb"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
	if strings.Contains(err.Error(), "database") {
		t.Errorf("error %q names a passing check", err)
	}
}

// immediateReports delivers one report as soon as it is subscribed, the way
// a broker replays a queued message straight after SUBSCRIBE.
type immediateReports struct {
	err error
}

func (f immediateReports) SubscribeReports(reg mqtt.Registrar) error {
	if f.err != nil {
		return f.err
	}
	_, err := reg.RegisterDevice(context.Background(), fleet.RegisterRequest{Serial: "PI-EARLY", Remote: true})
	return err
}

type stubIdentity struct{}

func (stubIdentity) ResolveSerial(context.Context) string { return "LOCAL" }

type stubLocation struct{}

func (stubLocation) ResolveIP(context.Context) string { return "127.0.0.1" }
func (stubLocation) Hostname() string                 { return "host" }

func TestAttachSinks_SinksBeforeReports(t *testing.T) {
	reconciler := fleet.NewReconciler(device.NewMemoryStore(), stubIdentity{}, stubLocation{})

	var got []fleet.Event
	sink := fleet.EventSinkFunc(func(_ context.Context, e fleet.Event) error {
		got = append(got, e)
		return nil
	})

	if err := attachSinks(reconciler, sink, immediateReports{}); err != nil {
		t.Fatalf("attachSinks() error = %v", err)
	}
	if len(got) != 1 || got[0].Serial != "PI-EARLY" {
		t.Errorf("events = %+v, want the first report delivered to the sink", got)
	}
}

func TestAttachSinks_NoReports(t *testing.T) {
	reconciler := fleet.NewReconciler(device.NewMemoryStore(), stubIdentity{}, stubLocation{})
	if err := attachSinks(reconciler, fleet.MultiSink{}, nil); err != nil {
		t.Errorf("attachSinks(nil) error = %v", err)
	}
}

func TestAttachSinks_SubscribeError(t *testing.T) {
	reconciler := fleet.NewReconciler(device.NewMemoryStore(), stubIdentity{}, stubLocation{})
	errBroker := errors.New("not authorised")

	err := attachSinks(reconciler, fleet.MultiSink{}, immediateReports{err: errBroker})
	if !errors.Is(err, errBroker) {
		t.Errorf("attachSinks() error = %v, want %v", err, errBroker)
	}
}
