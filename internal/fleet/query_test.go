package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-fleet/internal/device"
)

func seededQueryService(t *testing.T) (*QueryService, device.Store) {
	t.Helper()
	store := sqlStore(t)
	ctx := context.Background()

	for i, serial := range []string{"PI-B", "PI-A", "LOCAL-SERIAL"} {
		rec := &device.Record{
			Serial:       serial,
			IPAddress:    device.StringPtr("10.0.0.1"),
			RegisteredAt: fixedNow.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%s) error = %v", serial, err)
		}
	}

	q := NewQueryService(store, stubIdentity{serial: "LOCAL-SERIAL"}, stubLocation{ip: "192.168.4.4", host: "pi-lab"})
	q.now = func() time.Time { return fixedNow }
	return q, store
}

func TestQueryService_CheckDevice(t *testing.T) {
	q, _ := seededQueryService(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		serial     string
		wantSerial string
		wantErr    error
	}{
		{"found", "PI-A", "PI-A", nil},
		{"resolves local serial when empty", "", "LOCAL-SERIAL", nil},
		{"trims whitespace", "  PI-B ", "PI-B", nil},
		{"not found", "PI-ZZZ", "", device.ErrDeviceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := q.CheckDevice(ctx, tt.serial)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CheckDevice() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckDevice() error = %v", err)
			}
			if rec.Serial != tt.wantSerial {
				t.Errorf("Serial = %q, want %q", rec.Serial, tt.wantSerial)
			}
		})
	}
}

func TestQueryService_CheckDevice_UnresolvableSerial(t *testing.T) {
	q := NewQueryService(device.NewMemoryStore(), stubIdentity{}, stubLocation{})

	_, err := q.CheckDevice(context.Background(), "")

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("CheckDevice() error = %v, want *ValidationError", err)
	}
}

func TestQueryService_ListDevices(t *testing.T) {
	q, _ := seededQueryService(t)

	devices, err := q.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	serials := make([]string, 0, len(devices))
	for _, d := range devices {
		serials = append(serials, d.Serial)
	}
	if diff := cmp.Diff([]string{"PI-B", "PI-A", "LOCAL-SERIAL"}, serials); diff != "" {
		t.Errorf("ListDevices() order mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryService_ListDevices_Empty(t *testing.T) {
	q := NewQueryService(device.NewMemoryStore(), stubIdentity{}, stubLocation{})

	devices, err := q.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("ListDevices() = %#v, want empty non-nil slice", devices)
	}
}

func TestQueryService_DeviceInfo(t *testing.T) {
	// DeviceInfo must not touch the store.
	q := NewQueryService(brokenStore{}, stubIdentity{serial: "LOCAL-SERIAL"}, stubLocation{ip: "192.168.4.4", host: "pi-lab"})
	q.now = func() time.Time { return fixedNow }

	got := q.DeviceInfo(context.Background())
	want := Snapshot{
		Serial:    "LOCAL-SERIAL",
		IPAddress: "192.168.4.4",
		Hostname:  "pi-lab",
		Timestamp: fixedNow,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DeviceInfo() mismatch (-want +got):\n%s", diff)
	}
}
